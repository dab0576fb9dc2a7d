// Package pipeline runs the five stages of a market brief in order and
// records the outcome.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/collect"
	"github.com/TobiSchelling/MarketBrief/internal/config"
	"github.com/TobiSchelling/MarketBrief/internal/database"
	"github.com/TobiSchelling/MarketBrief/internal/images"
	"github.com/TobiSchelling/MarketBrief/internal/metrics"
	"github.com/TobiSchelling/MarketBrief/internal/stage"
)

// Run statuses.
const (
	StatusCompleted      = database.StatusCompleted
	StatusPartialSuccess = database.StatusPartialSuccess
	StatusFailed         = database.StatusFailed
)

// Step names, in execution order.
const (
	StepRetrieval     = "retrieval"
	StepSummarization = "summarization"
	StepFormatting    = "formatting"
	StepTranslation   = "translation"
	StepDistribution  = "distribution"
)

// Stages holds the stage functions of a run. A nil stage yields an error
// payload and the run continues.
type Stages struct {
	Retrieve   func(ctx context.Context) stage.Payload
	Summarize  func(ctx context.Context, up stage.Upstream) stage.Payload
	Format     func(ctx context.Context, up stage.Upstream) stage.Payload
	Translate  func(ctx context.Context, up stage.Upstream) stage.Payload
	Distribute func(ctx context.Context, up stage.Upstream) stage.Payload
}

// Store persists run receipts.
type Store interface {
	InsertRun(r database.Run) error
}

// Options are the run-independent collaborators of a pipeline.
type Options struct {
	// Demo forces the synthetic news source even with full credentials.
	Demo    bool
	Log     logrus.FieldLogger
	Metrics *metrics.Recorder
	Store   Store
	Now     func() time.Time
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Status  stage.Status
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID      string
	Status     string
	Demo       bool
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
	Err        error

	News        stage.Payload
	Summary     stage.Payload
	Formatted   stage.Payload
	Translated  stage.Payload
	Distributed stage.Payload
}

// Pipeline orchestrates the five-step brief generation.
type Pipeline struct {
	stages  Stages
	demo    bool
	log     logrus.FieldLogger
	metrics *metrics.Recorder
	store   Store
	now     func() time.Time

	// Set by New; used by DryRun.
	cfg         *config.Config
	creds       config.Credentials
	demoReasons []string
}

// NewWithStages creates a pipeline around explicit stage functions.
func NewWithStages(stages Stages, opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		stages:  stages,
		demo:    opts.Demo,
		log:     log.WithField("component", "pipeline"),
		metrics: opts.Metrics,
		store:   opts.Store,
		now:     now,
	}
}

// Demo reports whether runs use the synthetic news source.
func (p *Pipeline) Demo() bool { return p.demo }

// Run executes all five steps. Stages never abort the run; an unexpected
// panic is caught here and reported as a failed run.
func (p *Pipeline) Run(ctx context.Context) (r *Result) {
	r = &Result{RunID: uuid.NewString(), Demo: p.demo, StartedAt: p.now()}
	log := p.log.WithField("run_id", r.RunID)
	log.WithField("demo", p.demo).Info("starting market brief run")

	defer func() {
		if rec := recover(); rec != nil {
			r.Status = StatusFailed
			r.Err = fmt.Errorf("pipeline failed: %v", rec)
			log.WithError(r.Err).Error("run aborted")
		}
		r.FinishedAt = p.now()
		p.metrics.RunFinished(r.Status, r.FinishedAt.Sub(r.StartedAt).Seconds())
		p.persist(log, r)
		log.WithField("status", r.Status).WithField("duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)).Info("run finished")
	}()

	log.Info("Step 1/5: Retrieving financial news...")
	r.News = p.step(r, StepRetrieval, func() stage.Payload {
		if p.stages.Retrieve == nil {
			return nil
		}
		return p.stages.Retrieve(ctx)
	})

	log.Info("Step 2/5: Summarizing...")
	r.Summary = p.step(r, StepSummarization, p.bind(ctx, p.stages.Summarize, stage.Single(r.News)))

	log.Info("Step 3/5: Formatting with charts...")
	r.Formatted = p.step(r, StepFormatting, p.bind(ctx, p.stages.Format, stage.Single(r.Summary)))

	log.Info("Step 4/5: Translating...")
	r.Translated = p.step(r, StepTranslation, p.bind(ctx, p.stages.Translate, stage.Single(r.Formatted)))

	log.Info("Step 5/5: Distributing...")
	r.Distributed = p.step(r, StepDistribution, p.bind(ctx, p.stages.Distribute, stage.Sequence(r.Translated, r.Formatted)))

	if r.Distributed.Bool(stage.KeySuccess) {
		r.Status = StatusCompleted
	} else {
		r.Status = StatusPartialSuccess
	}
	return r
}

func (p *Pipeline) bind(ctx context.Context, fn func(context.Context, stage.Upstream) stage.Payload, up stage.Upstream) func() stage.Payload {
	return func() stage.Payload {
		if fn == nil {
			return nil
		}
		return fn(ctx, up)
	}
}

func (p *Pipeline) step(r *Result, name string, fn func() stage.Payload) stage.Payload {
	out := fn()
	if out == nil {
		out = stage.Fallback(stage.StatusError, "stage not configured", p.now(), nil)
	}

	sr := StepResult{Name: name, Status: out.Status(), Summary: summarize(name, out)}
	if sr.Status == stage.StatusError {
		sr.Err = errors.New(out.String(stage.KeyError))
	}
	r.Steps = append(r.Steps, sr)
	p.metrics.StageOutcome(name, string(sr.Status))
	return out
}

// summarize renders the one-line report for a step.
func summarize(name string, out stage.Payload) string {
	suffix := ""
	if out.Status() == stage.StatusFallback {
		suffix = " (fallback)"
	}
	switch name {
	case StepRetrieval:
		if s := out.String(stage.KeySearchSummary); s != "" {
			return s + suffix
		}
		return out.String(stage.KeyError)
	case StepSummarization:
		s := fmt.Sprintf("%d words from %d sources", out.Int(stage.KeyWordCount), out.Int(stage.KeySourceCount))
		if out.Bool(stage.KeyTruncated) {
			s += ", truncated"
		}
		return s + suffix
	case StepFormatting:
		return fmt.Sprintf("%d chart images attached", len(images.DescriptorsFrom(out[stage.KeyImages]))) + suffix
	case StepTranslation:
		return fmt.Sprintf("%d languages prepared", countTranslations(out[stage.KeyTranslations])) + suffix
	case StepDistribution:
		pdf := "PDF not created"
		if out.Bool(stage.KeyPDFCreated) {
			pdf = "PDF saved to " + out.String(stage.KeyPDFPath)
		}
		tg := "Telegram not sent"
		if out.Bool(stage.KeyTelegramSent) {
			tg = fmt.Sprintf("Telegram message %d sent", out.Int(stage.KeyTelegramMessageID))
		}
		return pdf + "; " + tg + suffix
	}
	return string(out.Status())
}

func countTranslations(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(b, &m) != nil {
		return 0
	}
	return len(m)
}

func (p *Pipeline) persist(log logrus.FieldLogger, r *Result) {
	if p.store == nil {
		return
	}
	if err := p.store.InsertRun(Receipt(r)); err != nil {
		log.WithError(err).Error("failed to store run")
	}
}

// Receipt converts a result into its persisted form.
func Receipt(r *Result) database.Run {
	run := database.Run{
		ID:                r.RunID,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		Status:            r.Status,
		Demo:              r.Demo,
		NewsCount:         len(collect.NewsItemsFrom(r.News[stage.KeyNewsData])),
		Summary:           r.Summary.String(stage.KeySummary),
		FormattedSummary:  r.Formatted.String(stage.KeyFormattedSummary),
		Translations:      marshalOr(r.Translated[stage.KeyTranslations], "{}"),
		Images:            marshalOr(images.DescriptorsFrom(r.Formatted[stage.KeyImages]), "[]"),
		PDFPath:           r.Distributed.String(stage.KeyPDFPath),
		TelegramSent:      r.Distributed.Bool(stage.KeyTelegramSent),
		TelegramMessageID: r.Distributed.Int(stage.KeyTelegramMessageID),
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	for _, s := range r.Steps {
		step := database.Step{Name: s.Name, Status: string(s.Status), Detail: s.Summary}
		if s.Err != nil && s.Err.Error() != "" {
			step.Detail = s.Err.Error()
		}
		run.Steps = append(run.Steps, step)
	}
	return run
}

func marshalOr(v any, empty string) string {
	if v == nil {
		return empty
	}
	b, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	return string(b)
}
