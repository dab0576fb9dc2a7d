// Package format implements the formatting stage: it resolves chart images
// for the summary and weaves chart markers into the text.
package format

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

// ImageResolver returns the images for a text. Implementations always
// return exactly images.Count descriptors.
type ImageResolver interface {
	Resolve(ctx context.Context, text string) []images.Descriptor
}

// Formatter runs the formatting stage.
type Formatter struct {
	resolver ImageResolver
	log      logrus.FieldLogger

	Now func() time.Time
}

// NewFormatter creates a formatter.
func NewFormatter(resolver ImageResolver, log logrus.FieldLogger) *Formatter {
	if log == nil {
		log = logrus.New()
	}
	return &Formatter{resolver: resolver, log: log.WithField("stage", "format"), Now: time.Now}
}

// Format runs the stage against the upstream summarization payload.
func (f *Formatter) Format(ctx context.Context, up stage.Upstream) stage.Payload {
	in, ok := stage.Extract(up, stage.KeySummary)
	if !ok {
		f.log.Warn("no summary upstream, using empty formatted content")
		return stage.Fallback(stage.StatusFallback, "missing summary", f.Now(), stage.Payload{
			stage.KeyFormattedSummary: "",
			stage.KeyImages:           []images.Descriptor{},
			stage.KeyOriginalSummary:  "",
		})
	}

	summary := in.String(stage.KeySummary)
	imgs := f.resolver.Resolve(ctx, summary)
	formatted := InsertMarkers(summary, imgs)

	f.log.WithField("images", len(imgs)).Info("content formatted")
	return stage.Payload{
		stage.KeyFormattedSummary: formatted,
		stage.KeyImages:           imgs,
		stage.KeyOriginalSummary:  summary,
		stage.KeyTimestamp:        f.Now(),
		stage.KeyStatus:           stage.StatusOK,
	}
}

// Marker renders the inline chart marker for an image.
func Marker(d images.Descriptor) string {
	return fmt.Sprintf("[Chart: %s]\n%s", markerTitle(d.Title), d.URL)
}

var titleBrackets = strings.NewReplacer("[", "(", "]", ")")

// markerTitle keeps a title on one line and free of square brackets, which
// would otherwise end the marker early.
func markerTitle(title string) string {
	return strings.Join(strings.Fields(titleBrackets.Replace(title)), " ")
}

// InsertMarkers places the first image's marker after the first paragraph
// and, once at least three blocks exist, the second image's marker in the
// middle. Paragraphs are separated by blank lines. Blank text is returned
// unchanged.
func InsertMarkers(text string, imgs []images.Descriptor) string {
	if strings.TrimSpace(text) == "" || len(imgs) == 0 {
		return text
	}

	blocks := strings.Split(text, "\n\n")
	blocks = insertAt(blocks, 1, Marker(imgs[0]))

	if len(imgs) >= 2 && len(blocks) >= 3 {
		blocks = insertAt(blocks, len(blocks)/2, Marker(imgs[1]))
	}
	return strings.Join(blocks, "\n\n")
}

func insertAt(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
