package document

import (
	"time"

	"github.com/TobiSchelling/MarketBrief/internal/images"
)

// SampleContent returns canned content for a test report.
func SampleContent(now time.Time) Content {
	return Content{
		Title: "Sample Financial Market Summary",
		FormattedSummary: "This is a sample financial market summary for testing purposes.\n\n" +
			"Market performance was mixed today with technology stocks showing strength.\n\n" +
			"[Chart: Stock Market Performance]\n" +
			"Overall market sentiment remains cautiously optimistic.",
		Images: []images.Descriptor{{
			URL:        "https://via.placeholder.com/400x300/0066cc/ffffff.png?text=Sample+Chart",
			Title:      "Sample Market Chart",
			Source:     "Sample",
			SearchTerm: "stock market",
		}},
		GeneratedAt: now,
	}
}
