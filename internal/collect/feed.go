package collect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/config"
)

const maxPerFeed = 20

// FeedSource reads market headlines from RSS/Atom feeds.
type FeedSource struct {
	feeds  []config.Feed
	window time.Duration
	log    logrus.FieldLogger
}

// NewFeedSource creates a feed source. Entries older than window are
// dropped; a zero window keeps everything.
func NewFeedSource(feeds []config.Feed, window time.Duration, log logrus.FieldLogger) *FeedSource {
	return &FeedSource{feeds: feeds, window: window, log: log}
}

// IsConfigured reports whether any feed is configured.
func (fs *FeedSource) IsConfigured() bool {
	return len(fs.feeds) > 0
}

// Search parses every feed and returns at most limit items. A feed that
// fails is logged and skipped; the call fails only when every feed fails.
func (fs *FeedSource) Search(ctx context.Context, limit int) ([]NewsItem, error) {
	var cutoff time.Time
	if fs.window > 0 {
		cutoff = time.Now().Add(-fs.window)
	}

	parser := gofeed.NewParser()
	var all []NewsItem
	failures := 0
	for _, fc := range fs.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			failures++
			fs.log.WithField("feed", fc.URL).WithError(err).Warn("failed to parse feed")
			continue
		}

		entries := fromFeed(feed, name, cutoff)
		fs.log.WithField("feed", name).WithField("count", len(entries)).Debug("parsed feed")
		all = append(all, entries...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
	}

	if failures > 0 && failures == len(fs.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", failures)
	}
	return all, nil
}

func fromFeed(feed *gofeed.Feed, source string, cutoff time.Time) []NewsItem {
	var items []NewsItem
	for _, it := range feed.Items {
		if len(items) >= maxPerFeed {
			break
		}
		item, published := parseItem(it, source)
		if item == nil {
			continue
		}
		if !cutoff.IsZero() && published != nil && published.Before(cutoff) {
			continue
		}
		items = append(items, *item)
	}
	return items
}

func parseItem(item *gofeed.Item, source string) (*NewsItem, *time.Time) {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if itemURL == "" || title == "" {
		return nil, nil
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	var publishedDate string
	if published != nil {
		publishedDate = published.UTC().Format(time.RFC3339)
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	return &NewsItem{
		Title:         title,
		Content:       stripHTML(content),
		URL:           itemURL,
		PublishedDate: publishedDate,
		Source:        source,
	}, published
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			result.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "rss.", "feeds.", "feed."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
