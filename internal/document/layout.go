// Package document lays out marker-bearing summaries and renders them as
// paginated PDF reports.
package document

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/logging"
)

const (
	defaultTitle      = "Financial Market Summary"
	summaryHeading    = "Market Summary"
	relatedHeading    = "Related Charts"
	chartNotAvailable = "(chart not available)"
	imageNotLoaded    = "(image could not be loaded)"
	generatedLayout   = "January 02, 2006 at 03:04 PM"
	titleDateLayout   = "January 02, 2006"
)

// BlockKind identifies a layout element.
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockMeta
	BlockHeading
	BlockParagraph
	BlockChartMarker
	BlockCaption
	BlockImage
	BlockUnavailable
)

// Block is one element of the laid-out document.
type Block struct {
	Kind BlockKind
	Text string
	// PNG, Width and Height are set for BlockImage.
	PNG    []byte
	Width  int
	Height int
}

// Content is the input of an assembly.
type Content struct {
	Title            string
	FormattedSummary string
	Images           []images.Descriptor
	GeneratedAt      time.Time
}

// Assembler turns Content into a Document. It never fails: every image
// that cannot be embedded is replaced by a textual note.
type Assembler struct {
	Loader           ImageLoader
	PlaceholderHosts []string
	Log              logrus.FieldLogger
}

// NewAssembler creates an assembler using HTTP image loading.
func NewAssembler(placeholderHosts []string, timeout time.Duration, log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logging.Discard()
	}
	return &Assembler{
		Loader:           NewHTTPImageLoader(timeout),
		PlaceholderHosts: placeholderHosts,
		Log:              log.WithField("component", "document"),
	}
}

// Assemble lays out content into a document ready to be written.
func (a *Assembler) Assemble(ctx context.Context, c Content) *Document {
	generated := c.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	title := c.Title
	if title == "" {
		title = defaultTitle + " - " + generated.Format(titleDateLayout)
	}
	return &Document{
		Title:     title,
		Generated: generated,
		Blocks:    a.Layout(ctx, Content{Title: title, FormattedSummary: c.FormattedSummary, Images: c.Images, GeneratedAt: generated}),
	}
}

// Layout produces the ordered blocks for content.
func (a *Assembler) Layout(ctx context.Context, c Content) []Block {
	blocks := []Block{
		{Kind: BlockTitle, Text: c.Title},
		{Kind: BlockMeta, Text: "Generated: " + c.GeneratedAt.Format(generatedLayout)},
		{Kind: BlockHeading, Text: summaryHeading},
	}

	for _, seg := range SplitMarkers(c.FormattedSummary) {
		if seg.Marker {
			blocks = append(blocks, Block{Kind: BlockChartMarker, Text: markerLabel(seg.Text)})
			continue
		}
		for _, p := range paragraphs(seg.Text) {
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: p})
		}
	}

	if len(c.Images) == 0 {
		return blocks
	}
	blocks = append(blocks, Block{Kind: BlockHeading, Text: relatedHeading})
	for _, img := range c.Images {
		blocks = append(blocks, a.imageBlocks(ctx, img)...)
	}
	return blocks
}

func (a *Assembler) imageBlocks(ctx context.Context, d images.Descriptor) []Block {
	title := d.Title
	if title == "" {
		title = "Chart"
	}
	if d.URL == "" || a.isPlaceholder(d.URL) {
		return []Block{{Kind: BlockUnavailable, Text: title + " " + chartNotAvailable}}
	}

	b, err := a.loadBlock(ctx, d.URL)
	if err != nil {
		a.log().WithField("url", d.URL).WithError(err).Warn("failed to embed image")
		return []Block{{Kind: BlockUnavailable, Text: title + " " + imageNotLoaded}}
	}
	return []Block{{Kind: BlockCaption, Text: title}, b}
}

func (a *Assembler) loadBlock(ctx context.Context, rawURL string) (b Block, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image processing panicked: %v", r)
		}
	}()
	if a.Loader == nil {
		return Block{}, fmt.Errorf("no image loader")
	}
	img, err := a.Loader.Load(ctx, rawURL)
	if err != nil {
		return Block{}, err
	}
	img = fitImage(img)
	data, err := encodePNG(img)
	if err != nil {
		return Block{}, err
	}
	bounds := img.Bounds()
	return Block{Kind: BlockImage, PNG: data, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

func (a *Assembler) isPlaceholder(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "placeholder") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range a.PlaceholderHosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

func (a *Assembler) log() logrus.FieldLogger {
	if a.Log == nil {
		return logging.Discard()
	}
	return a.Log
}
