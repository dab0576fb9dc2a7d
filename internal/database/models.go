package database

import "time"

// Run statuses.
const (
	StatusCompleted      = "completed"
	StatusPartialSuccess = "partial_success"
	StatusFailed         = "failed"
)

// Run is the persisted receipt of one pipeline run.
type Run struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	Status            string
	Demo              bool
	NewsCount         int
	Summary           string
	FormattedSummary  string
	Translations      string // JSON object keyed by language code
	Images            string // JSON array of image descriptors
	PDFPath           string
	TelegramSent      bool
	TelegramMessageID int
	Error             string
	Steps             []Step
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Step is the outcome of one stage in a run.
type Step struct {
	Name   string
	Status string
	Detail string
}

// Stats holds aggregate run counts.
type Stats struct {
	TotalRuns    int
	Completed    int
	Partial      int
	Failed       int
	DemoRuns     int
	TelegramSent int
	PDFs         int
	LastRun      *time.Time
}
