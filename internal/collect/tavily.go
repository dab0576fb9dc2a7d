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

const tavilyBaseURL = "https://api.tavily.com"

// TavilyClient searches news through the Tavily search API.
type TavilyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTavilyClient creates a new Tavily client. An empty baseURL means the
// public endpoint.
func NewTavilyClient(apiKey, baseURL string) *TavilyClient {
	if baseURL == "" {
		baseURL = tavilyBaseURL
	}
	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *TavilyClient) IsConfigured() bool {
	return c.apiKey != ""
}

// TavilyResponse is the subset of the search response used here.
type TavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title         string `json:"title"`
		Content       string `json:"content"`
		URL           string `json:"url"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
	Images []json.RawMessage `json:"images"`
}

// Query runs a raw search request. Image harvesting reuses it with
// include_images set.
func (c *TavilyClient) Query(ctx context.Context, query string, maxResults int, includeImages bool) (*TavilyResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily API key not configured")
	}

	body := map[string]any{
		"api_key":        c.apiKey,
		"query":          query,
		"search_depth":   "advanced",
		"include_answer": true,
		"include_images": includeImages,
		"max_results":    maxResults,
		"days":           1,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/search", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result TavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding tavily response: %w", err)
	}
	return &result, nil
}

// Search returns news items for query.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]NewsItem, error) {
	result, err := c.Query(ctx, query, maxResults, true)
	if err != nil {
		return nil, err
	}

	items := make([]NewsItem, 0, len(result.Results))
	for _, r := range result.Results {
		items = append(items, NewsItem{
			Title:         strings.TrimSpace(r.Title),
			Content:       strings.TrimSpace(r.Content),
			URL:           r.URL,
			PublishedDate: r.PublishedDate,
			Source:        "Tavily",
		})
	}
	return items, nil
}
