package images

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/MarketBrief/internal/collect"
)

const termsPerSearcher = 2

// Searcher finds images for search terms. Implementations use at most two
// terms and harvest at most one valid image per term.
type Searcher interface {
	Name() string
	Search(ctx context.Context, terms []string) ([]Descriptor, error)
}

// SerperSearcher searches Google Images through serper.dev.
type SerperSearcher struct {
	Client *collect.SerperClient
}

func (s *SerperSearcher) Name() string { return "serper" }

// Search queries "<term> financial chart" for each term.
func (s *SerperSearcher) Search(ctx context.Context, terms []string) ([]Descriptor, error) {
	return perTerm(terms, func(term string) (*Descriptor, error) {
		var result struct {
			Images []struct {
				ImageURL string `json:"imageUrl"`
				Title    string `json:"title"`
			} `json:"images"`
		}
		body := map[string]any{"q": term + " financial chart", "num": 5}
		if err := s.Client.Post(ctx, "/images", body, &result); err != nil {
			return nil, err
		}
		for _, img := range result.Images {
			if !ValidURL(img.ImageURL) {
				continue
			}
			title := img.Title
			if title == "" {
				title = term
			}
			return &Descriptor{URL: img.ImageURL, Title: title, Source: "Serper", SearchTerm: term}, nil
		}
		return nil, nil
	})
}

// TavilySearcher harvests images attached to Tavily search results.
type TavilySearcher struct {
	Client *collect.TavilyClient
}

func (t *TavilySearcher) Name() string { return "tavily" }

// Search queries "<term> financial chart graph" with images enabled.
func (t *TavilySearcher) Search(ctx context.Context, terms []string) ([]Descriptor, error) {
	return perTerm(terms, func(term string) (*Descriptor, error) {
		resp, err := t.Client.Query(ctx, term+" financial chart graph", 3, true)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Images {
			u := tavilyImageURL(raw)
			if ValidURL(u) {
				return &Descriptor{URL: u, Title: "Financial Chart - " + term, Source: "Tavily", SearchTerm: term}, nil
			}
		}
		return nil, nil
	})
}

// tavilyImageURL accepts both the plain-string and the described-object
// image shapes Tavily returns.
func tavilyImageURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}

// perTerm runs one lookup per term. A failing term is skipped; the searcher
// fails only when every term failed.
func perTerm(terms []string, lookup func(term string) (*Descriptor, error)) ([]Descriptor, error) {
	if len(terms) > termsPerSearcher {
		terms = terms[:termsPerSearcher]
	}
	var (
		out     []Descriptor
		lastErr error
		failed  int
	)
	for _, term := range terms {
		d, err := lookup(term)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		if d != nil {
			out = append(out, *d)
		}
	}
	if len(terms) > 0 && failed == len(terms) {
		return nil, fmt.Errorf("all %d image queries failed: %w", failed, lastErr)
	}
	return out, nil
}
