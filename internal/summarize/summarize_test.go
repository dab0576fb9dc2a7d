package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MarketBrief/internal/collect"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

type mockProvider struct {
	response  string
	err       error
	prompt    string
	maxTokens int
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	m.prompt = prompt
	m.maxTokens = maxTokens
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func newsPayload(n int) stage.Payload {
	items := make([]collect.NewsItem, n)
	for i := range items {
		items[i] = collect.NewsItem{
			Title:   "Headline " + string(rune('A'+i)),
			Content: "Body",
			Source:  "Tavily",
		}
	}
	return stage.Payload{stage.KeyNewsData: items}
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

func newTestSummarizer(p *mockProvider) *Summarizer {
	log, _ := test.NewNullLogger()
	if p == nil {
		return NewSummarizer(nil, 500, 600, log)
	}
	return NewSummarizer(p, 500, 600, log)
}

func TestSummarizeFallbackForMissingInput(t *testing.T) {
	s := newTestSummarizer(&mockProvider{response: "unused"})

	for name, up := range map[string]stage.Upstream{
		"none":     stage.None(),
		"empty":    stage.Single(stage.Payload{}),
		"no match": stage.Sequence(nil, stage.Payload{"other": 1}),
	} {
		t.Run(name, func(t *testing.T) {
			p := s.Summarize(context.Background(), up)
			require.Equal(t, NoDataSummary, p.String(stage.KeySummary))
			require.Equal(t, 0, p.Int(stage.KeyWordCount))
			require.Equal(t, stage.StatusFallback, p.Status())
		})
	}
}

func TestSummarizeUsesLLM(t *testing.T) {
	m := &mockProvider{response: "  Stocks rose broadly.\n\nBonds were flat.  "}
	s := newTestSummarizer(m)

	p := s.Summarize(context.Background(), stage.Sequence(newsPayload(12)))
	require.Equal(t, stage.StatusOK, p.Status())
	require.Equal(t, "Stocks rose broadly.\n\nBonds were flat.", p.String(stage.KeySummary))
	require.Equal(t, 6, p.Int(stage.KeyWordCount))
	require.Equal(t, 12, p.Int(stage.KeySourceCount))
	require.Equal(t, 600, m.maxTokens)
	require.Contains(t, m.prompt, "10. Headline J")
	require.NotContains(t, m.prompt, "11. ")
}

func TestSummarizeTruncatesLongOutput(t *testing.T) {
	s := newTestSummarizer(&mockProvider{response: words(650)})

	p := s.Summarize(context.Background(), stage.Single(newsPayload(3)))
	summary := p.String(stage.KeySummary)
	require.Equal(t, 500, WordCount(summary))
	require.True(t, strings.HasSuffix(summary, "..."))
	require.True(t, p.Bool(stage.KeyTruncated))
}

func TestSummarizeManualDigestOnLLMFailure(t *testing.T) {
	s := newTestSummarizer(&mockProvider{err: errors.New("timeout")})

	p := s.Summarize(context.Background(), stage.Single(newsPayload(7)))
	summary := p.String(stage.KeySummary)
	require.Equal(t, stage.StatusFallback, p.Status())
	require.True(t, strings.HasPrefix(summary, "Financial Market Summary:\n\nKey developments in today's market:\n• Headline A\n"))
	require.Contains(t, summary, "• Headline E\n")
	require.NotContains(t, summary, "Headline F")
	require.Equal(t, 7, p.Int(stage.KeySourceCount))
}

func TestSummarizeWithoutProvider(t *testing.T) {
	p := newTestSummarizer(nil).Summarize(context.Background(), stage.Single(newsPayload(2)))
	require.Contains(t, p.String(stage.KeySummary), "• Headline B")
}

func TestSummarizeEmptyNewsList(t *testing.T) {
	up := stage.Single(stage.Payload{stage.KeyNewsData: []collect.NewsItem{}, stage.KeyStatus: stage.StatusError})
	p := newTestSummarizer(&mockProvider{response: "x"}).Summarize(context.Background(), up)
	require.Equal(t, NoDataSummary, p.String(stage.KeySummary))
}

func TestCapWords(t *testing.T) {
	text, cut := CapWords("a b c", 3)
	require.Equal(t, "a b c", text)
	require.False(t, cut)

	text, cut = CapWords(words(501), 500)
	require.True(t, cut)
	require.Equal(t, 500, WordCount(text))
	require.True(t, strings.HasSuffix(text, "word..."))

	text, cut = CapWords("", 500)
	require.Equal(t, "", text)
	require.False(t, cut)
}
