// Package collect implements news retrieval, the entry stage of the pipeline.
package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/config"
	"github.com/TobiSchelling/MarketBrief/internal/fallback"
	"github.com/TobiSchelling/MarketBrief/internal/fetch"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

const (
	// Capability is the label used for news providers in logs and metrics.
	Capability = "news"

	enrichBelow = 200
	feedWindow  = 24 * time.Hour
)

// PageFetcher returns the readable text of a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Options configures a Collector.
type Options struct {
	Providers []fallback.Provider[NewsItem]
	Min       int
	Timeout   time.Duration
	Enhancer  *Enhancer
	// Fetcher, when set, fills in short snippets with the article text.
	Fetcher  PageFetcher
	Observer fallback.Observer
	Log      logrus.FieldLogger
}

// Collector runs the news providers in priority order.
type Collector struct {
	chain    fallback.Chain[NewsItem]
	enhancer *Enhancer
	fetcher  PageFetcher
	log      logrus.FieldLogger

	Now func() time.Time
}

// NewCollector creates a collector. News has no static floor: if every
// provider falls short the stage reports what it has, possibly nothing.
func NewCollector(opts Options) *Collector {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	log = log.WithField("stage", "collect")
	return &Collector{
		chain: fallback.Chain[NewsItem]{
			Capability: Capability,
			Providers:  opts.Providers,
			Min:        opts.Min,
			Timeout:    opts.Timeout,
			Log:        log,
			Observer:   opts.Observer,
		},
		enhancer: opts.Enhancer,
		fetcher:  opts.Fetcher,
		log:      log,
		Now:      time.Now,
	}
}

// Collect runs retrieval and returns the stage payload.
func (c *Collector) Collect(ctx context.Context) stage.Payload {
	res := c.chain.Run(ctx)
	items := res.Items

	if c.fetcher != nil && len(items) > 0 {
		items = c.enrich(ctx, items)
	}
	items = c.enhancer.Enhance(ctx, items)

	if len(items) == 0 {
		reason := "no news items retrieved"
		if len(res.Failed) > 0 {
			reason = fmt.Sprintf("no news items retrieved; failed providers: %s", failedNames(res))
		}
		c.log.Warn(reason)
		return stage.Fallback(stage.StatusError, reason, c.Now(), stage.Payload{
			stage.KeyNewsData: []NewsItem{},
		})
	}

	c.log.WithField("count", len(items)).WithField("providers", strings.Join(res.Attempted, ",")).Info("news collected")
	return stage.Payload{
		stage.KeyNewsData:      items,
		stage.KeyTimestamp:     c.Now(),
		stage.KeySearchSummary: fmt.Sprintf("Found %d relevant financial news items", len(items)),
		stage.KeyStatus:        stage.StatusOK,
	}
}

func (c *Collector) enrich(ctx context.Context, items []NewsItem) []NewsItem {
	guard := fetch.NewDomainGuard()
	out := make([]NewsItem, len(items))
	copy(out, items)

	for i := range out {
		it := &out[i]
		if len(it.Content) >= enrichBelow || it.URL == "" || guard.Blocked(it.URL) {
			continue
		}
		text, err := c.fetcher.Fetch(ctx, it.URL)
		if err != nil {
			guard.Record(it.URL, err)
			c.log.WithField("url", it.URL).WithError(err).Debug("content enrichment failed")
			continue
		}
		if text != "" {
			it.Content = text
		}
	}
	return out
}

func failedNames(res fallback.Result[NewsItem]) string {
	names := make([]string, 0, len(res.Failed))
	for _, name := range res.Attempted {
		if _, ok := res.Failed[name]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// LiveProviders builds the configured provider chain. Providers without
// credentials get a nil Fetch so the chain skips them.
func LiveProviders(cfg *config.Config, creds config.Credentials, log logrus.FieldLogger) []fallback.Provider[NewsItem] {
	news := cfg.News
	var out []fallback.Provider[NewsItem]
	for _, name := range news.Providers {
		p := fallback.Provider[NewsItem]{Name: name}
		switch strings.ToLower(name) {
		case "tavily":
			if creds.Tavily != "" {
				client := NewTavilyClient(creds.Tavily, "")
				p.Fetch = func(ctx context.Context) ([]NewsItem, error) {
					return client.Search(ctx, news.Query, news.MaxResults)
				}
			}
		case "serper":
			if creds.Serper != "" {
				client := NewSerperClient(creds.Serper, "")
				p.Fetch = func(ctx context.Context) ([]NewsItem, error) {
					return client.Search(ctx, news.SerperQuery, news.MaxResults)
				}
			}
		case "finnhub":
			if creds.Finnhub != "" {
				client := NewFinnhubClient(creds.Finnhub, "")
				p.Fetch = func(ctx context.Context) ([]NewsItem, error) {
					return client.Search(ctx, news.MaxResults)
				}
			}
		case "feeds":
			src := NewFeedSource(news.Feeds, feedWindow, log)
			if src.IsConfigured() {
				p.Fetch = func(ctx context.Context) ([]NewsItem, error) {
					return src.Search(ctx, news.MaxResults)
				}
			}
		default:
			log.WithField("provider", name).Warn("unknown news provider in config, ignoring")
			continue
		}
		out = append(out, p)
	}
	return out
}

// DemoProviders returns the single synthetic provider used in demo mode.
func DemoProviders() []fallback.Provider[NewsItem] {
	return []fallback.Provider[NewsItem]{{
		Name:  "demo",
		Fetch: DemoSource{}.Search,
	}}
}
