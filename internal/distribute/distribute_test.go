package distribute

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
	"github.com/TobiSchelling/MarketBrief/internal/telegram"
)

type noLoader struct{}

func (noLoader) Load(context.Context, string) (image.Image, error) {
	return nil, errors.New("offline")
}

type stubSender struct {
	receipt telegram.Receipt
	text    string
	imgs    []images.Descriptor
	panics  bool
}

func (s *stubSender) Send(_ context.Context, text string, imgs []images.Descriptor) telegram.Receipt {
	if s.panics {
		panic("bot exploded")
	}
	s.text = text
	s.imgs = imgs
	return s.receipt
}

var fixed = time.Date(2025, 3, 14, 16, 5, 9, 0, time.UTC)

func newDistributor(t *testing.T, sender Sender, outDir string) *Distributor {
	logger, _ := test.NewNullLogger()
	asm := &document.Assembler{Loader: noLoader{}, Log: logger}
	d := NewDistributor(asm, sender, outDir, logger)
	d.Now = func() time.Time { return fixed }
	return d
}

func formatted() stage.Payload {
	return stage.Payload{
		stage.KeyFormattedSummary: "Stocks rose.\n\n[Chart: Index]\nhttps://via.placeholder.com/a.png\n\nBonds fell.",
		stage.KeyImages:           images.Placeholders(),
		stage.KeyStatus:           stage.StatusOK,
	}
}

func TestDistribute_MissingUpstream(t *testing.T) {
	d := newDistributor(t, &stubSender{}, t.TempDir())
	for _, up := range []stage.Upstream{
		stage.None(),
		stage.Single(stage.Payload{}),
		stage.Sequence(stage.Payload{"other": 1}),
	} {
		out := d.Distribute(context.Background(), up)
		require.Equal(t, stage.StatusFallback, out.Status())
		require.False(t, out.Bool(stage.KeyPDFCreated))
		require.False(t, out.Bool(stage.KeyTelegramSent))
		require.False(t, out.Bool(stage.KeySuccess))
		require.Equal(t, 0, out.Int(stage.KeyImagesIncluded))
		require.Equal(t, ContentType, out.String(stage.KeyContentType))
	}
}

func TestDistribute_PDFAndTelegram(t *testing.T) {
	sender := &stubSender{receipt: telegram.Receipt{Sent: true, MessageID: 42, Photos: []telegram.PhotoReceipt{{Sent: true}, {Sent: false, Error: "x"}}}}
	dir := t.TempDir()
	d := newDistributor(t, sender, dir)

	translated := stage.Payload{stage.KeyOriginalContent: "ignored", stage.KeyTranslations: map[string]any{}}
	out := d.Distribute(context.Background(), stage.Sequence(translated, formatted()))

	require.Equal(t, stage.StatusOK, out.Status())
	require.True(t, out.Bool(stage.KeyPDFCreated))
	require.Equal(t, filepath.Join(dir, "financial_market_summary_20250314_160509.pdf"), out.String(stage.KeyPDFPath))
	data, err := os.ReadFile(out.String(stage.KeyPDFPath))
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(data[:4]))

	require.True(t, out.Bool(stage.KeyTelegramSent))
	require.True(t, out.Bool(stage.KeySuccess))
	require.Equal(t, 42, out.Int(stage.KeyTelegramMessageID))
	require.Equal(t, 2, out.Int(stage.KeyImagesIncluded))
	require.Len(t, sender.imgs, 2)
	require.Contains(t, sender.text, "Stocks rose.")
	require.Len(t, out[stage.KeyImageSends], 2)
}

func TestDistribute_TelegramFailureKeepsPDF(t *testing.T) {
	sender := &stubSender{receipt: telegram.Receipt{Error: "chat not found", Photos: []telegram.PhotoReceipt{}}}
	d := newDistributor(t, sender, t.TempDir())

	out := d.Distribute(context.Background(), stage.Single(formatted()))

	require.True(t, out.Bool(stage.KeyPDFCreated))
	require.False(t, out.Bool(stage.KeyTelegramSent))
	require.False(t, out.Bool(stage.KeySuccess))
	require.Equal(t, "chat not found", out.String(stage.KeyTelegramError))
	require.Equal(t, stage.StatusOK, out.Status())
}

func TestDistribute_PDFFailureStillSends(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	sender := &stubSender{receipt: telegram.Receipt{Sent: true, MessageID: 7}}
	d := newDistributor(t, sender, filepath.Join(blocker, "sub"))

	out := d.Distribute(context.Background(), stage.Single(formatted()))

	require.False(t, out.Bool(stage.KeyPDFCreated))
	require.Empty(t, out.String(stage.KeyPDFPath))
	require.NotEmpty(t, out.String(stage.KeyPDFError))
	require.True(t, out.Bool(stage.KeyTelegramSent))
	require.True(t, out.Bool(stage.KeySuccess))
}

func TestDistribute_NoSender(t *testing.T) {
	d := newDistributor(t, nil, t.TempDir())
	out := d.Distribute(context.Background(), stage.Single(formatted()))

	require.True(t, out.Bool(stage.KeyPDFCreated))
	require.False(t, out.Bool(stage.KeySuccess))
	require.Equal(t, telegram.ErrNotConfigured.Error(), out.String(stage.KeyTelegramError))
}

func TestDistribute_SenderPanicIsContained(t *testing.T) {
	d := newDistributor(t, &stubSender{panics: true}, t.TempDir())
	out := d.Distribute(context.Background(), stage.Single(formatted()))

	require.True(t, out.Bool(stage.KeyPDFCreated))
	require.False(t, out.Bool(stage.KeySuccess))
	require.Contains(t, out.String(stage.KeyTelegramError), "bot exploded")
}
