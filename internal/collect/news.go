package collect

import (
	"fmt"
	"strings"
)

// NewsItem is one retrieved news fragment. Source names the provider, not
// the publisher's trustworthiness; duplicates across providers are kept.
type NewsItem struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
	Source        string `json:"source"`
}

// NewsItemsFrom converts a news_data payload value into items. It accepts the
// typed slice produced by the collector as well as decoded JSON records.
// Anything else yields nil.
func NewsItemsFrom(v any) []NewsItem {
	switch items := v.(type) {
	case []NewsItem:
		return items
	case []map[string]any:
		out := make([]NewsItem, 0, len(items))
		for _, m := range items {
			out = append(out, itemFromMap(m))
		}
		return out
	case []any:
		out := make([]NewsItem, 0, len(items))
		for _, e := range items {
			switch rec := e.(type) {
			case NewsItem:
				out = append(out, rec)
			case map[string]any:
				out = append(out, itemFromMap(rec))
			}
		}
		return out
	}
	return nil
}

func itemFromMap(m map[string]any) NewsItem {
	str := func(k string) string {
		switch v := m[k].(type) {
		case string:
			return v
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
	return NewsItem{
		Title:         strings.TrimSpace(str("title")),
		Content:       strings.TrimSpace(str("content")),
		URL:           str("url"),
		PublishedDate: str("published_date"),
		Source:        str("source"),
	}
}
