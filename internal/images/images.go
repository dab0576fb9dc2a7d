// Package images resolves illustrative chart images for a summary.
package images

import (
	"net/url"
	"strings"
)

// Count is the exact number of images every resolution returns.
const Count = 2

// Descriptor describes one candidate image.
type Descriptor struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	SearchTerm string `json:"search_term"`
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp"}

// ValidURL reports whether raw is an absolute URL that points at an image:
// its path ends in a known image extension or the URL mentions "image".
func ValidURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "image") {
		return true
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) || strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var financialTerms = []string{
	"stock market", "trading", "earnings", "S&P 500", "Dow Jones",
	"NASDAQ", "NYSE", "futures", "commodities", "bonds", "forex",
	"cryptocurrency", "bitcoin", "market chart", "financial graph",
}

var defaultTerms = []string{"stock market chart", "financial market graph"}

const maxTerms = 3

// ExtractSearchTerms returns up to three vocabulary terms found in text,
// in vocabulary order. With no match it returns the two default terms.
func ExtractSearchTerms(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, term := range financialTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			found = append(found, term)
			if len(found) == maxTerms {
				break
			}
		}
	}
	if len(found) == 0 {
		return append([]string(nil), defaultTerms...)
	}
	return found
}

// Placeholders returns the static images used when search falls short.
func Placeholders() []Descriptor {
	return []Descriptor{
		{
			URL:        "https://via.placeholder.com/600x400/0066cc/ffffff.png?text=Stock+Market+Chart",
			Title:      "Stock Market Performance Chart",
			Source:     "Fallback",
			SearchTerm: "stock market",
		},
		{
			URL:        "https://via.placeholder.com/600x400/009900/ffffff.png?text=Trading+Volume+Graph",
			Title:      "Trading Volume Analysis",
			Source:     "Fallback",
			SearchTerm: "trading volume",
		},
	}
}

// fillPlaceholders tops have up to Count with placeholders.
func fillPlaceholders(have []Descriptor) []Descriptor {
	out := append([]Descriptor(nil), have...)
	for _, p := range Placeholders() {
		if len(out) >= Count {
			break
		}
		out = append(out, p)
	}
	return out
}

// DescriptorsFrom converts an images payload value into descriptors,
// dropping any whose URL is not a valid image URL.
func DescriptorsFrom(v any) []Descriptor {
	var raw []Descriptor
	switch list := v.(type) {
	case []Descriptor:
		raw = list
	case []map[string]any:
		for _, m := range list {
			raw = append(raw, fromMap(m))
		}
	case []any:
		for _, e := range list {
			switch d := e.(type) {
			case Descriptor:
				raw = append(raw, d)
			case map[string]any:
				raw = append(raw, fromMap(d))
			}
		}
	}

	out := make([]Descriptor, 0, len(raw))
	for _, d := range raw {
		if ValidURL(d.URL) {
			out = append(out, d)
		}
	}
	return out
}

func fromMap(m map[string]any) Descriptor {
	s := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	return Descriptor{URL: s("url"), Title: s("title"), Source: s("source"), SearchTerm: s("search_term")}
}
