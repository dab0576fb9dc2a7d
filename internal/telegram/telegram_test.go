package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MarketBrief/internal/images"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	requests map[string][]url.Values
	failURL  string
	nextID   int
	// rejectMarkup fails every sendMessage that sets a parse mode.
	rejectMarkup bool
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	f := &fakeBotAPI{requests: map[string][]url.Values{}, nextID: 100}
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.requests[method] = append(f.requests[method], r.PostForm)
	f.nextID++
	id := f.nextID
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"brief","username":"brief_bot"}}`)
	case "sendPhoto":
		if f.failURL != "" && r.PostForm.Get("photo") == f.failURL {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":1,"type":"channel"}}}`, id)
	case "sendMessage":
		if f.rejectMarkup && r.PostForm.Get("parse_mode") != "" {
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity starting at byte offset 57"}`)
			return
		}
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":1,"type":"channel"}}}`, id)
	default:
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func newTestSink(t *testing.T, srv *httptest.Server, chat string) *Sink {
	logger, _ := test.NewNullLogger()
	s, err := NewSink(Options{
		Token:     "TOKEN",
		ChatID:    chat,
		Endpoint:  srv.URL + "/bot%s/%s",
		MaxChars:  20,
		ParseMode: "Markdown",
		Client:    srv.Client(),
		Log:       logger,
	})
	require.NoError(t, err)
	s.Now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 10))
	require.Equal(t, "exactly10!", Truncate("exactly10!", 10))
	require.Equal(t, "abc...", Truncate("abcdef", 3))
	require.Equal(t, "日本...", Truncate("日本語テキスト", 2))
	require.Equal(t, "anything", Truncate("anything", 0))
}

func TestNewSink_NotConfigured(t *testing.T) {
	_, err := NewSink(Options{Token: "x"})
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewSink(Options{ChatID: "1"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSend_TextAndPhotos(t *testing.T) {
	f, srv := newFakeBotAPI(t)
	s := newTestSink(t, srv, "12345")

	imgs := []images.Descriptor{
		{URL: "https://cdn.example.com/a.png", Title: "Index"},
		{URL: "https://cdn.example.com/b.png"},
		{URL: "https://cdn.example.com/c.png", Title: "Never sent"},
	}
	r := s.Send(context.Background(), "The market rallied strongly today.", imgs)

	require.True(t, r.Sent)
	require.NotZero(t, r.MessageID)
	require.Len(t, r.Photos, 2)
	require.True(t, r.Photos[0].Sent)
	require.True(t, r.Photos[1].Sent)

	msgs := f.requests["sendMessage"]
	require.Len(t, msgs, 1)
	require.Equal(t, "12345", msgs[0].Get("chat_id"))
	require.Equal(t, "Markdown", msgs[0].Get("parse_mode"))
	require.Equal(t, "*Financial Market Summary*\nMarch 14, 2025\n\nThe market rallied s...", msgs[0].Get("text"))

	photos := f.requests["sendPhoto"]
	require.Len(t, photos, 2)
	require.Equal(t, "https://cdn.example.com/a.png", photos[0].Get("photo"))
	require.Equal(t, "Index", photos[0].Get("caption"))
	require.Equal(t, "Financial Chart", photos[1].Get("caption"))
}

func TestSend_PhotoFailureIsIndependent(t *testing.T) {
	f, srv := newFakeBotAPI(t)
	f.failURL = "https://cdn.example.com/a.png"
	s := newTestSink(t, srv, "mychannel")

	r := s.Send(context.Background(), "text", []images.Descriptor{
		{URL: "https://cdn.example.com/a.png", Title: "Bad"},
		{URL: "https://cdn.example.com/b.png", Title: "Good"},
	})

	require.True(t, r.Sent)
	require.False(t, r.Photos[0].Sent)
	require.Contains(t, r.Photos[0].Error, "wrong file identifier")
	require.True(t, r.Photos[1].Sent)
	require.Equal(t, "@mychannel", f.requests["sendMessage"][0].Get("chat_id"))
}

func TestSend_CanceledContext(t *testing.T) {
	f, srv := newFakeBotAPI(t)
	s := newTestSink(t, srv, "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := s.Send(ctx, "text", nil)

	require.False(t, r.Sent)
	require.NotEmpty(t, r.Error)
	require.Empty(t, f.requests["sendMessage"])
}

func TestMessage_DropsChartMarkers(t *testing.T) {
	_, srv := newFakeBotAPI(t)
	s := newTestSink(t, srv, "1")
	s.maxChars = 1000

	got := s.Message("Lead.\n\n[Chart: S&P_500 Daily]\nhttps://cdn.example.com/spx_daily.png\n\nTail.\n\n[Chart: Volume]")
	require.Equal(t, "*Financial Market Summary*\nMarch 14, 2025\n\nLead.\n\nTail.", got)
}

func TestSend_RetriesWithoutParseMode(t *testing.T) {
	f, srv := newFakeBotAPI(t)
	f.rejectMarkup = true
	s := newTestSink(t, srv, "1")

	r := s.Send(context.Background(), "Rates_up", nil)

	require.True(t, r.Sent)
	require.Empty(t, r.Error)
	msgs := f.requests["sendMessage"]
	require.Len(t, msgs, 2)
	require.Equal(t, "Markdown", msgs[0].Get("parse_mode"))
	require.Empty(t, msgs[1].Get("parse_mode"))
	require.Equal(t, msgs[0].Get("text"), msgs[1].Get("text"))
}
