package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/TobiSchelling/MarketBrief/internal/fetch"
)

// Bounding box for embedded charts, in points.
const (
	MaxImageWidth  = 400
	MaxImageHeight = 300

	maxImageBytes = 10 << 20
)

// ImageLoader downloads and decodes an image.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// HTTPImageLoader fetches images over HTTP with a bounded timeout.
type HTTPImageLoader struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPImageLoader creates a loader. A zero timeout means 30 seconds.
func NewHTTPImageLoader(timeout time.Duration) *HTTPImageLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPImageLoader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Load fetches url and decodes it. Status codes of 400 and above are errors.
func (l *HTTPImageLoader) Load(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", fetch.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &fetch.HTTPError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// fitImage downscales img to the bounding box, preserving aspect ratio.
// Smaller images are returned unchanged.
func fitImage(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= MaxImageWidth && b.Dy() <= MaxImageHeight {
		return img
	}
	return imaging.Fit(img, MaxImageWidth, MaxImageHeight, imaging.Lanczos)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
