package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/config"
)

// New builds the process logger from config. The returned closer releases the
// optional log file and is never nil.
func New(cfg config.Logging) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetLevel(parseLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return log, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return log, f, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func parseLevel(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
