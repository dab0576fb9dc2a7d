package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/llm"
	"github.com/TobiSchelling/MarketBrief/internal/logging"
)

const (
	enhanceTopN      = 5
	enhanceMaxTokens = 800
	enhancedTitle    = "AI-Enhanced Market Analysis"
	enhancedSource   = "Groq AI"
)

// Enhancer appends an LLM-written analysis of the top items to the
// collected news.
type Enhancer struct {
	LLM llm.Provider
	Log logrus.FieldLogger
	Now func() time.Time
}

// Enhance returns items with one extra analysis item appended. On any
// failure, or with nothing to analyse, items are returned unchanged.
func (e *Enhancer) Enhance(ctx context.Context, items []NewsItem) []NewsItem {
	if e == nil || e.LLM == nil || !e.LLM.IsConfigured() || len(items) == 0 {
		return items
	}

	top := items
	if len(top) > enhanceTopN {
		top = top[:enhanceTopN]
	}
	var sb strings.Builder
	for i, it := range top {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nContent: %s", it.Title, it.Content)
	}

	prompt := "Analyze and summarize these financial news items, highlighting key market movements and trends:\n\n" + sb.String()
	analysis, err := e.LLM.Generate(ctx, prompt, enhanceMaxTokens)
	if err != nil {
		log := e.Log
		if log == nil {
			log = logging.Discard()
		}
		log.WithField("provider", e.LLM.Name()).WithError(err).Warn("news enhancement failed")
		return items
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	out := make([]NewsItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, NewsItem{
		Title:         enhancedTitle,
		Content:       analysis,
		PublishedDate: now().Format(time.RFC3339),
		Source:        enhancedSource,
	})
}
