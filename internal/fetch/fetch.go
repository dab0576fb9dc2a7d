package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// UserAgent is sent with every outbound page or image request.
const UserAgent = "Mozilla/5.0 (compatible; MarketBrief/1.0; +https://github.com/TobiSchelling/MarketBrief)"

// minTextLength is the shortest extracted text considered an article.
const minTextLength = 100

// HTTPError is returned when the remote host answers with a 4xx/5xx status.
type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, http.StatusText(e.Code))
}

// IsHTTPError reports whether err came from an error status code.
func IsHTTPError(err error) bool {
	var h *HTTPError
	return errors.As(err, &h)
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	client *http.Client
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch downloads articleURL and returns its readable text. An empty string
// with a nil error means the page had no extractable article.
func (f *ContentFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", articleURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &HTTPError{Code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minTextLength {
		return text, nil
	}
	return "", nil
}

// Domain returns the lower-cased host of rawURL, or "".
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u == nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// DomainGuard remembers hosts that answered with an error status so the rest
// of a run skips them.
type DomainGuard struct {
	failed map[string]struct{}
}

// NewDomainGuard returns an empty guard.
func NewDomainGuard() *DomainGuard {
	return &DomainGuard{failed: make(map[string]struct{})}
}

// Blocked reports whether rawURL's host already failed.
func (g *DomainGuard) Blocked(rawURL string) bool {
	_, ok := g.failed[Domain(rawURL)]
	return ok
}

// Record marks rawURL's host as failed when err is an HTTP status error.
func (g *DomainGuard) Record(rawURL string, err error) {
	if err == nil || !IsHTTPError(err) {
		return
	}
	if d := Domain(rawURL); d != "" {
		g.failed[d] = struct{}{}
	}
}
