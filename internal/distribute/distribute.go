// Package distribute implements the distribution stage: the report is saved
// as a PDF and sent to Telegram, each independently of the other.
package distribute

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
	"github.com/TobiSchelling/MarketBrief/internal/telegram"
)

// ContentType marks what is distributed. Translations are kept in the run
// history only.
const ContentType = "English-only"

// Assembler lays out a document from content.
type Assembler interface {
	Assemble(ctx context.Context, c document.Content) *document.Document
}

// Sender delivers text and images to a messaging channel.
type Sender interface {
	Send(ctx context.Context, text string, imgs []images.Descriptor) telegram.Receipt
}

// Distributor runs the distribution stage.
type Distributor struct {
	assembler Assembler
	sender    Sender
	outDir    string
	log       logrus.FieldLogger

	Now func() time.Time
}

// NewDistributor creates a distributor. A nil sender reports Telegram as
// not configured.
func NewDistributor(assembler Assembler, sender Sender, outDir string, log logrus.FieldLogger) *Distributor {
	if log == nil {
		log = logrus.New()
	}
	return &Distributor{
		assembler: assembler,
		sender:    sender,
		outDir:    outDir,
		log:       log.WithField("stage", "distribute"),
		Now:       time.Now,
	}
}

// Distribute runs the stage against the upstream formatted content. The
// result's success flag reflects the Telegram text message alone.
func (d *Distributor) Distribute(ctx context.Context, up stage.Upstream) stage.Payload {
	in, ok := stage.Extract(up, stage.KeyFormattedSummary)
	if !ok {
		d.log.Warn("no formatted data available for distribution")
		return stage.Fallback(stage.StatusFallback, "no formatted data available for distribution", d.Now(), stage.Payload{
			stage.KeyPDFCreated:        false,
			stage.KeyPDFPath:           "",
			stage.KeyTelegramSent:      false,
			stage.KeyTelegramMessageID: 0,
			stage.KeyImageSends:        []telegram.PhotoReceipt{},
			stage.KeyImagesIncluded:    0,
			stage.KeyContentType:       ContentType,
			stage.KeySuccess:           false,
		})
	}

	text := in.String(stage.KeyFormattedSummary)
	imgs := images.DescriptorsFrom(in[stage.KeyImages])
	now := d.Now()

	out := stage.Payload{
		stage.KeyTimestamp:      now,
		stage.KeyContentType:    ContentType,
		stage.KeyImagesIncluded: len(imgs),
		stage.KeyStatus:         stage.StatusOK,
	}

	path, err := d.writePDF(ctx, text, imgs, now)
	out[stage.KeyPDFCreated] = err == nil
	out[stage.KeyPDFPath] = path
	if err != nil {
		d.log.WithError(err).Error("pdf creation failed")
		out[stage.KeyPDFPath] = ""
		out[stage.KeyPDFError] = err.Error()
	} else {
		d.log.WithField("path", path).Info("pdf report created")
	}

	r := d.send(ctx, text, imgs)
	out[stage.KeyTelegramSent] = r.Sent
	out[stage.KeyTelegramMessageID] = r.MessageID
	out[stage.KeyImageSends] = r.Photos
	if r.Error != "" {
		out[stage.KeyTelegramError] = r.Error
	}
	out[stage.KeySuccess] = r.Sent
	return out
}

func (d *Distributor) writePDF(ctx context.Context, text string, imgs []images.Descriptor, now time.Time) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf rendering panicked: %v", r)
		}
	}()
	if d.assembler == nil {
		return "", fmt.Errorf("no document assembler")
	}
	doc := d.assembler.Assemble(ctx, document.Content{
		Title:            "Financial Market Summary - " + now.Format("January 02, 2006"),
		FormattedSummary: text,
		Images:           imgs,
		GeneratedAt:      now,
	})
	path = filepath.Join(d.outDir, document.FileName(now))
	if err := doc.WriteFile(path); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Distributor) send(ctx context.Context, text string, imgs []images.Descriptor) (r telegram.Receipt) {
	r.Photos = []telegram.PhotoReceipt{}
	if d.sender == nil {
		d.log.Warn("telegram credentials not configured")
		r.Error = telegram.ErrNotConfigured.Error()
		return r
	}
	defer func() {
		if p := recover(); p != nil {
			r = telegram.Receipt{Photos: []telegram.PhotoReceipt{}, Error: fmt.Sprintf("telegram send panicked: %v", p)}
		}
	}()
	return d.sender.Send(ctx, text, imgs)
}
