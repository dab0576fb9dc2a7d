package collect

import (
	"context"
	"time"
)

// DemoSource returns a fixed set of market headlines. It stands in for every
// live provider when the run lacks credentials.
type DemoSource struct {
	Now func() time.Time
}

// Search returns the canned items, stamped with today's date.
func (d DemoSource) Search(_ context.Context) ([]NewsItem, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	date := now().Format(time.RFC3339)

	items := make([]NewsItem, len(demoItems))
	copy(items, demoItems)
	for i := range items {
		items[i].PublishedDate = date
		items[i].Source = "Demo"
	}
	return items, nil
}

var demoItems = []NewsItem{
	{
		Title:   "S&P 500 Closes Lower After Tech Selloff",
		URL:     "https://finance.yahoo.com/news/demo",
		Content: "U.S. stocks ended lower on Friday as technology shares declined. The S&P 500 dropped 0.6% to close at 6,460.26, while the Nasdaq fell 1.2%. Investors weighed concerns about sticky inflation and potential Federal Reserve policy changes.",
	},
	{
		Title:   "Federal Reserve Officials Signal Cautious Approach",
		URL:     "https://reuters.com/demo",
		Content: "Federal Reserve officials indicated a measured approach to future interest rate decisions, citing persistent inflation concerns and mixed economic data.",
	},
	{
		Title:   "Treasury Yields Edge Higher Ahead of Inflation Data",
		URL:     "https://cnbc.com/demo",
		Content: "The 10-year Treasury yield rose three basis points as bond traders positioned for next week's consumer price index report.",
	},
	{
		Title:   "Oil Prices Slip on Demand Worries",
		URL:     "https://marketwatch.com/demo",
		Content: "Crude oil futures fell 1.1% after weaker manufacturing data from major economies raised questions about global energy demand.",
	},
}
