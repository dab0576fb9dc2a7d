// Package summarize implements the summarization stage.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/collect"
	"github.com/TobiSchelling/MarketBrief/internal/llm"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

const (
	// DefaultMaxWords caps every summary.
	DefaultMaxWords  = 500
	defaultMaxTokens = 600
	promptItems      = 10
	manualHeadlines  = 5

	// NoDataSummary is emitted when there is no news to summarize.
	NoDataSummary = "Unable to generate market summary due to lack of available financial news data. " +
		"Please check your news data sources and API connections."
)

const summaryPrompt = `You are a financial market analyst. Based on the following news items, create a comprehensive market summary under %d words.

Focus on:
1. Key market movements and trends
2. Significant trading activities
3. Important earnings or economic reports
4. Market sentiment and outlook
5. Any major events affecting financial markets

Separate paragraphs with a blank line. Do not use markdown headings.

News Items:
%s

Create a clear, professional summary that provides actionable insights for investors and traders.`

// Summarizer turns collected news into a bounded-length summary.
type Summarizer struct {
	provider  llm.Provider
	maxWords  int
	maxTokens int
	log       logrus.FieldLogger

	Now func() time.Time
}

// NewSummarizer creates a summarizer. A nil provider always produces the
// headline digest.
func NewSummarizer(provider llm.Provider, maxWords, maxTokens int, log logrus.FieldLogger) *Summarizer {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if log == nil {
		log = logrus.New()
	}
	return &Summarizer{
		provider:  provider,
		maxWords:  maxWords,
		maxTokens: maxTokens,
		log:       log.WithField("stage", "summarize"),
		Now:       time.Now,
	}
}

// Summarize runs the stage against the upstream retrieval payload.
func (s *Summarizer) Summarize(ctx context.Context, up stage.Upstream) stage.Payload {
	in, ok := stage.Extract(up, stage.KeyNewsData)
	if !ok {
		s.log.Warn("no news data upstream, using fallback summary")
		return noData("missing news_data", s.Now())
	}
	items := collect.NewsItemsFrom(in[stage.KeyNewsData])
	if len(items) == 0 {
		s.log.Warn("news data is empty, using fallback summary")
		return noData("news_data is empty", s.Now())
	}

	summary, generated := s.generate(ctx, items)
	summary, truncated := CapWords(summary, s.maxWords)
	if truncated {
		s.log.WithField("max_words", s.maxWords).Info("summary truncated")
	}

	status := stage.StatusOK
	if !generated {
		status = stage.StatusFallback
	}
	s.log.WithField("words", WordCount(summary)).WithField("status", status).Info("summary created")
	return stage.Payload{
		stage.KeySummary:     summary,
		stage.KeyWordCount:   WordCount(summary),
		stage.KeySourceCount: len(items),
		stage.KeyTruncated:   truncated,
		stage.KeyTimestamp:   s.Now(),
		stage.KeyStatus:      status,
	}
}

func (s *Summarizer) generate(ctx context.Context, items []collect.NewsItem) (string, bool) {
	if s.provider == nil {
		return ManualSummary(items), false
	}

	prompt := fmt.Sprintf(summaryPrompt, s.maxWords, newsContent(items))
	text, err := s.provider.Generate(ctx, prompt, s.maxTokens)
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.WithField("provider", s.provider.Name()).WithError(err).Warn("LLM summary failed, using headline digest")
		return ManualSummary(items), false
	}
	return strings.TrimSpace(text), true
}

func newsContent(items []collect.NewsItem) string {
	if len(items) > promptItems {
		items = items[:promptItems]
	}
	var sb strings.Builder
	for i, it := range items {
		title := it.Title
		if title == "" {
			title = "No title"
		}
		source := it.Source
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&sb, "%d. %s\n   Source: %s\n   Summary: %s\n\n", i+1, title, source, it.Content)
	}
	return strings.TrimSpace(sb.String())
}

// ManualSummary builds a headline digest used when no LLM is available.
func ManualSummary(items []collect.NewsItem) string {
	var sb strings.Builder
	sb.WriteString("Financial Market Summary:\n\n")
	sb.WriteString("Key developments in today's market:\n")
	n := 0
	for _, it := range items {
		if n == manualHeadlines {
			break
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		fmt.Fprintf(&sb, "• %s\n", title)
		n++
	}
	sb.WriteString("\nThis summary was generated from available financial news sources.")
	return sb.String()
}

// CapWords truncates text to the first max words followed by "...". The
// boolean reports whether truncation happened. Text within the limit is
// returned unchanged.
func CapWords(text string, max int) (string, bool) {
	words := strings.Fields(text)
	if len(words) <= max {
		return text, false
	}
	return strings.Join(words[:max], " ") + "...", true
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func noData(reason string, at time.Time) stage.Payload {
	return stage.Fallback(stage.StatusFallback, reason, at, stage.Payload{
		stage.KeySummary:     NoDataSummary,
		stage.KeyWordCount:   0,
		stage.KeySourceCount: 0,
	})
}
