package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const serperBaseURL = "https://google.serper.dev"

// SerperClient searches Google News through serper.dev.
type SerperClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSerperClient creates a new Serper client. An empty baseURL means the
// public endpoint.
func NewSerperClient(apiKey, baseURL string) *SerperClient {
	if baseURL == "" {
		baseURL = serperBaseURL
	}
	return &SerperClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *SerperClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Post sends body to a Serper endpoint and decodes the JSON reply into out.
func (c *SerperClient) Post(ctx context.Context, path string, body, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("serper API key not configured")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("serper API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("serper API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding serper response: %w", err)
	}
	return nil
}

// Search returns news items for query.
func (c *SerperClient) Search(ctx context.Context, query string, num int) ([]NewsItem, error) {
	var result struct {
		News []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
			Date    string `json:"date"`
		} `json:"news"`
	}
	body := map[string]any{"q": query, "num": num, "tbm": "nws"}
	if err := c.Post(ctx, "/search", body, &result); err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(result.News))
	for _, n := range result.News {
		items = append(items, NewsItem{
			Title:         strings.TrimSpace(n.Title),
			Content:       strings.TrimSpace(n.Snippet),
			URL:           n.Link,
			PublishedDate: n.Date,
			Source:        "Serper",
		})
	}
	return items, nil
}
