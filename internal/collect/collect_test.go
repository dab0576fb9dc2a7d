package collect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MarketBrief/internal/config"
	"github.com/TobiSchelling/MarketBrief/internal/fallback"
	"github.com/TobiSchelling/MarketBrief/internal/fetch"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func fixed(n int, source string) fallback.Provider[NewsItem] {
	return fallback.Provider[NewsItem]{
		Name: source,
		Fetch: func(context.Context) ([]NewsItem, error) {
			out := make([]NewsItem, n)
			for i := range out {
				out[i] = NewsItem{Title: source, Content: "content", Source: source}
			}
			return out, nil
		},
	}
}

func TestTavilySearch(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"results":[{"title":" Stocks rally ","content":"Dow up","url":"https://x.com/a","published_date":"2024-05-01"}]}`))
	}))
	defer srv.Close()

	items, err := NewTavilyClient("tv", srv.URL).Search(context.Background(), "markets", 10)
	require.NoError(t, err)
	require.Equal(t, []NewsItem{{Title: "Stocks rally", Content: "Dow up", URL: "https://x.com/a", PublishedDate: "2024-05-01", Source: "Tavily"}}, items)
	require.Equal(t, "tv", body["api_key"])
	require.Equal(t, "advanced", body["search_depth"])
	require.EqualValues(t, 10, body["max_results"])
}

func TestTavilyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewTavilyClient("tv", srv.URL).Search(context.Background(), "q", 1)
	require.ErrorContains(t, err, "429")
}

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sk", r.Header.Get("X-API-KEY"))
		w.Write([]byte(`{"news":[{"title":"Fed","snippet":"Rates held","link":"https://y.com/b","date":"1 hour ago"}]}`))
	}))
	defer srv.Close()

	items, err := NewSerperClient("sk", srv.URL).Search(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Rates held", items[0].Content)
	require.Equal(t, "Serper", items[0].Source)
}

func TestSerperMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"news": "oops"`))
	}))
	defer srv.Close()

	_, err := NewSerperClient("sk", srv.URL).Search(context.Background(), "q", 10)
	require.Error(t, err)
}

func TestFromMarketNews(t *testing.T) {
	headline := "Apple beats estimates"
	summary := "Revenue rose 5%"
	link := "https://z.com/c"
	ts := int64(1714560000)
	empty := ""

	items := fromMarketNews([]finnhub.MarketNews{
		{Headline: &headline, Summary: &summary, Url: &link, Datetime: &ts},
		{Headline: &empty},
		{Headline: &headline},
	}, 1)

	require.Len(t, items, 1)
	require.Equal(t, "Apple beats estimates", items[0].Title)
	require.Equal(t, "2024-05-01T10:40:00Z", items[0].PublishedDate)
	require.Equal(t, "Finnhub", items[0].Source)
}

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Markets</title>
<item><title>Nasdaq hits record</title><link>https://feed.example.com/1</link>
<description>&lt;p&gt;Tech &amp;amp; chips lead&lt;/p&gt;</description></item>
<item><title></title><link>https://feed.example.com/2</link></item>
</channel></rss>`

func TestFeedSourceSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	log, _ := test.NewNullLogger()
	src := NewFeedSource([]config.Feed{{URL: srv.URL, Name: "Wire"}}, 0, log)
	items, err := src.Search(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Nasdaq hits record", items[0].Title)
	require.Equal(t, "Tech & chips lead", items[0].Content)
	require.Equal(t, "Wire", items[0].Source)
}

func TestFeedSourceAllFail(t *testing.T) {
	log, _ := test.NewNullLogger()
	src := NewFeedSource([]config.Feed{{URL: "http://127.0.0.1:1/feed"}}, 0, log)
	_, err := src.Search(context.Background(), 10)
	require.Error(t, err)
}

func TestExtractSourceName(t *testing.T) {
	require.Equal(t, "Marketwatch", extractSourceName("https://feeds.marketwatch.com/rss"))
	require.Equal(t, "Cnbc", extractSourceName("https://www.cnbc.com/id/1/rss.html"))
}

func TestCollectAccumulatesUntilMinimum(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCollector(Options{
		Min: 10,
		Log: log,
		Providers: []fallback.Provider[NewsItem]{
			fixed(6, "tavily"),
			fixed(6, "serper"),
			fixed(6, "finnhub"),
		},
	})

	p := c.Collect(context.Background())
	require.Equal(t, stage.StatusOK, p.Status())
	items := NewsItemsFrom(p[stage.KeyNewsData])
	require.Len(t, items, 12)
	require.Equal(t, "tavily", items[0].Source)
	require.Equal(t, "serper", items[11].Source)
	require.Equal(t, "Found 12 relevant financial news items", p.String(stage.KeySearchSummary))
}

func TestCollectNoItemsIsError(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCollector(Options{
		Min: 10,
		Log: log,
		Providers: []fallback.Provider[NewsItem]{
			{Name: "tavily", Fetch: func(context.Context) ([]NewsItem, error) { return nil, errors.New("down") }},
			{Name: "serper"},
		},
	})

	p := c.Collect(context.Background())
	require.Equal(t, stage.StatusError, p.Status())
	require.Empty(t, NewsItemsFrom(p[stage.KeyNewsData]))
	require.Contains(t, p.String(stage.KeyError), "tavily")
	require.True(t, p.Has(stage.KeyTimestamp))
}

func TestEnhancerAppendsAnalysis(t *testing.T) {
	m := &mockProvider{response: "Markets mixed."}
	e := &Enhancer{LLM: m, Now: func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }}

	in := []NewsItem{{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"}, {Title: "f"}}
	out := e.Enhance(context.Background(), in)

	require.Len(t, out, 7)
	require.Len(t, in, 6)
	require.Equal(t, "AI-Enhanced Market Analysis", out[6].Title)
	require.Equal(t, "Groq AI", out[6].Source)
	require.Equal(t, "Markets mixed.", out[6].Content)
	require.NotContains(t, m.prompts[0], "Title: f")
}

func TestEnhancerFailureLeavesItems(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := &Enhancer{LLM: &mockProvider{err: errors.New("rate limited")}, Log: log}
	in := []NewsItem{{Title: "a"}}
	require.Equal(t, in, e.Enhance(context.Background(), in))

	var none *Enhancer
	require.Equal(t, in, none.Enhance(context.Background(), in))
}

func TestEnhancerFailureWithoutLogger(t *testing.T) {
	e := &Enhancer{LLM: &mockProvider{err: errors.New("rate limited")}}
	in := []NewsItem{{Title: "a"}}
	require.Equal(t, in, e.Enhance(context.Background(), in))
}

func TestCollectStampsInjectedClock(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewCollector(Options{Min: 1, Log: log, Providers: []fallback.Provider[NewsItem]{fixed(2, "tavily")}})
	fixedTime := time.Date(2025, 3, 14, 16, 5, 9, 0, time.UTC)
	c.Now = func() time.Time { return fixedTime }

	p := c.Collect(context.Background())
	require.Equal(t, fixedTime, p[stage.KeyTimestamp])
}

type pageFetcher struct {
	calls []string
	pages map[string]string
	errs  map[string]error
}

func (f *pageFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	return f.pages[url], f.errs[url]
}

func TestEnrichSkipsFailedDomains(t *testing.T) {
	log, _ := test.NewNullLogger()
	pf := &pageFetcher{
		pages: map[string]string{"https://ok.com/1": "full article text"},
		errs:  map[string]error{"https://bad.com/1": &fetch.HTTPError{Code: 403}},
	}
	items := []NewsItem{
		{Title: "1", URL: "https://ok.com/1", Content: "short"},
		{Title: "2", URL: "https://bad.com/1", Content: "short"},
		{Title: "3", URL: "https://bad.com/2", Content: "short"},
	}
	c := NewCollector(Options{
		Log:       log,
		Fetcher:   pf,
		Providers: []fallback.Provider[NewsItem]{{Name: "x", Fetch: func(context.Context) ([]NewsItem, error) { return items, nil }}},
	})

	p := c.Collect(context.Background())
	got := NewsItemsFrom(p[stage.KeyNewsData])
	require.Equal(t, "full article text", got[0].Content)
	require.Equal(t, "short", got[1].Content)
	require.Equal(t, []string{"https://ok.com/1", "https://bad.com/1"}, pf.calls)
}

func TestNewsItemsFrom(t *testing.T) {
	require.Nil(t, NewsItemsFrom("nope"))
	require.Nil(t, NewsItemsFrom(nil))

	got := NewsItemsFrom([]any{
		map[string]any{"title": "T", "content": "C", "url": "u", "source": "Tavily"},
		42,
	})
	require.Equal(t, []NewsItem{{Title: "T", Content: "C", URL: "u", Source: "Tavily"}}, got)
}

func TestDemoProviders(t *testing.T) {
	log, _ := test.NewNullLogger()
	p := NewCollector(Options{Providers: DemoProviders(), Log: log}).Collect(context.Background())
	items := NewsItemsFrom(p[stage.KeyNewsData])
	require.NotEmpty(t, items)
	require.Equal(t, "Demo", items[0].Source)
}

func TestLiveProvidersSkipMissingCredentials(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := config.Default()
	providers := LiveProviders(cfg, config.Credentials{Serper: "sk"}, log)

	require.Len(t, providers, 4)
	require.Nil(t, providers[0].Fetch)
	require.NotNil(t, providers[1].Fetch)
	require.Nil(t, providers[2].Fetch)
	require.NotNil(t, providers[3].Fetch)
}
