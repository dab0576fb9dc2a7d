// Package telegram delivers the English summary to a Telegram chat or channel.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/document"
	"github.com/TobiSchelling/MarketBrief/internal/images"
)

const (
	DefaultMaxChars = 2000
	// MaxPhotos caps the image sends per message.
	MaxPhotos = 2

	defaultCaption = "Financial Chart"
	sendTimeout    = 30 * time.Second
)

// ErrNotConfigured is reported when no token or chat is set.
var ErrNotConfigured = errors.New("telegram credentials not configured")

// Options configure a Sink.
type Options struct {
	Token  string
	ChatID string
	// Endpoint overrides the Bot API URL format, e.g. for tests.
	Endpoint  string
	MaxChars  int
	ParseMode string
	Client    tgbotapi.HTTPClient
	Log       logrus.FieldLogger
}

// PhotoReceipt reports one image send.
type PhotoReceipt struct {
	URL       string `json:"url"`
	Sent      bool   `json:"sent"`
	MessageID int    `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Receipt reports a whole delivery. Sent reflects the text message only.
type Receipt struct {
	Sent      bool           `json:"sent"`
	MessageID int            `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Photos    []PhotoReceipt `json:"photos"`
}

// Sink sends a text message followed by up to two photos.
type Sink struct {
	bot       *tgbotapi.BotAPI
	chatID    int64
	channel   string
	maxChars  int
	parseMode string
	log       logrus.FieldLogger

	Now func() time.Time
}

// NewSink authenticates against the Bot API and returns a ready sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, ErrNotConfigured
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: sendTimeout}
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Log == nil {
		opts.Log = logrus.New()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, opts.Client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	s := &Sink{
		bot:       bot,
		maxChars:  opts.MaxChars,
		parseMode: opts.ParseMode,
		log:       opts.Log.WithField("component", "telegram"),
		Now:       time.Now,
	}
	if id, err := strconv.ParseInt(opts.ChatID, 10, 64); err == nil {
		s.chatID = id
	} else {
		s.channel = opts.ChatID
		if !strings.HasPrefix(s.channel, "@") {
			s.channel = "@" + s.channel
		}
	}
	return s, nil
}

// Message builds the text that Send delivers. Chart markers are dropped;
// the charts follow as photos.
func (s *Sink) Message(text string) string {
	header := fmt.Sprintf("*Financial Market Summary*\n%s\n\n", s.Now().Format("January 02, 2006"))
	return header + Truncate(withoutMarkers(text), s.maxChars)
}

var blankRun = regexp.MustCompile(`\n{3,}`)

func withoutMarkers(text string) string {
	var sb strings.Builder
	for _, seg := range document.SplitMarkers(text) {
		if !seg.Marker {
			sb.WriteString(seg.Text)
		}
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(sb.String(), "\n\n"))
}

// Send delivers text and then at most MaxPhotos images. Photo failures are
// recorded per image and never affect Receipt.Sent.
func (s *Sink) Send(ctx context.Context, text string, imgs []images.Descriptor) Receipt {
	r := Receipt{Photos: []PhotoReceipt{}}

	if err := ctx.Err(); err != nil {
		r.Error = err.Error()
		return r
	}

	msg := s.textMessage(s.Message(text))
	sent, err := s.bot.Send(msg)
	if err != nil && msg.ParseMode != "" && isEntityError(err) {
		s.log.WithError(err).Warn("telegram rejected message formatting, resending as plain text")
		msg.ParseMode = ""
		sent, err = s.bot.Send(msg)
	}
	if err != nil {
		s.log.WithError(err).Error("failed to send telegram message")
		r.Error = err.Error()
	} else {
		r.Sent = true
		r.MessageID = sent.MessageID
		s.log.WithField("message_id", sent.MessageID).Info("telegram message sent")
	}

	if len(imgs) > MaxPhotos {
		imgs = imgs[:MaxPhotos]
	}
	for _, img := range imgs {
		r.Photos = append(r.Photos, s.sendPhoto(ctx, img))
	}
	return r
}

func (s *Sink) sendPhoto(ctx context.Context, img images.Descriptor) PhotoReceipt {
	pr := PhotoReceipt{URL: img.URL}
	if err := ctx.Err(); err != nil {
		pr.Error = err.Error()
		return pr
	}
	if img.URL == "" {
		pr.Error = "empty image url"
		return pr
	}

	caption := img.Title
	if caption == "" {
		caption = defaultCaption
	}
	var photo tgbotapi.PhotoConfig
	if s.channel != "" {
		photo = tgbotapi.NewPhotoToChannel(s.channel, tgbotapi.FileURL(img.URL))
	} else {
		photo = tgbotapi.NewPhoto(s.chatID, tgbotapi.FileURL(img.URL))
	}
	photo.Caption = caption

	sent, err := s.bot.Send(photo)
	if err != nil {
		s.log.WithField("url", img.URL).WithError(err).Warn("failed to send telegram image")
		pr.Error = err.Error()
		return pr
	}
	pr.Sent = true
	pr.MessageID = sent.MessageID
	return pr
}

func (s *Sink) textMessage(text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if s.channel != "" {
		msg = tgbotapi.NewMessageToChannel(s.channel, text)
	} else {
		msg = tgbotapi.NewMessage(s.chatID, text)
	}
	msg.ParseMode = s.parseMode
	return msg
}

// isEntityError reports a Bot API rejection of the message markup.
func isEntityError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}

// Truncate caps text at limit characters, appending "..." when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
