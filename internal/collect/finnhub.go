package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
)

// FinnhubClient reads general market news from Finnhub.
type FinnhubClient struct {
	apiKey string
	client *finnhub.DefaultApiService
}

// NewFinnhubClient creates a Finnhub client. An empty baseURL means the
// public endpoint.
func NewFinnhubClient(apiKey, baseURL string) *FinnhubClient {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	if baseURL != "" {
		cfg.Servers = finnhub.ServerConfigurations{{URL: strings.TrimRight(baseURL, "/")}}
	}
	return &FinnhubClient{
		apiKey: apiKey,
		client: finnhub.NewAPIClient(cfg).DefaultApi,
	}
}

// IsConfigured returns whether the API key is available.
func (c *FinnhubClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search returns up to limit general market news items.
func (c *FinnhubClient) Search(ctx context.Context, limit int) ([]NewsItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("finnhub API key not configured")
	}
	res, _, err := c.client.MarketNews(ctx).Category("general").Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub API error: %w", err)
	}
	return fromMarketNews(res, limit), nil
}

func fromMarketNews(news []finnhub.MarketNews, limit int) []NewsItem {
	var items []NewsItem
	for _, n := range news {
		if limit > 0 && len(items) >= limit {
			break
		}
		item := NewsItem{Source: "Finnhub"}
		if n.Headline != nil {
			item.Title = strings.TrimSpace(*n.Headline)
		}
		if n.Summary != nil {
			item.Content = strings.TrimSpace(*n.Summary)
		}
		if n.Url != nil {
			item.URL = *n.Url
		}
		if n.Datetime != nil && *n.Datetime > 0 {
			item.PublishedDate = time.Unix(*n.Datetime, 0).UTC().Format(time.RFC3339)
		}
		if item.Title == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
