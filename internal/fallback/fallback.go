// Package fallback implements the ordered-attempt-with-static-floor pattern
// shared by every capability that talks to an external service.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured marks a provider that was skipped because it lacks
// credentials or endpoints.
var ErrNotConfigured = errors.New("provider not configured")

// Provider is one source for a capability. A nil Fetch means the provider is
// absent and is skipped without counting as a failure.
type Provider[T any] struct {
	Name  string
	Fetch func(ctx context.Context) ([]T, error)
}

// Observer is told about each failed attempt.
type Observer func(capability, provider string, err error)

// Chain tries providers in order, accumulating results until Min is reached.
// When the providers fall short, Static is appended.
type Chain[T any] struct {
	Capability string
	Providers  []Provider[T]
	Min        int
	// Static returns the deterministic floor. It must itself satisfy Min
	// when combined with whatever was collected.
	Static func(have []T) []T
	// Timeout bounds each attempt. Zero means no extra bound.
	Timeout  time.Duration
	Log      logrus.FieldLogger
	Observer Observer
}

// Result reports what the chain produced.
type Result[T any] struct {
	Items      []T
	Attempted  []string
	Failed     map[string]error
	UsedStatic bool
}

// Run executes the chain. It never panics and never returns an error; failures
// are logged, reported to the observer and recorded in Result.Failed.
func (c Chain[T]) Run(ctx context.Context) Result[T] {
	res := Result[T]{Failed: map[string]error{}}
	log := c.Log
	if log == nil {
		log = logrus.New()
	}
	log = log.WithField("capability", c.Capability)

	for _, p := range c.Providers {
		if c.Min > 0 && len(res.Items) >= c.Min {
			break
		}
		if p.Fetch == nil {
			log.WithField("provider", p.Name).Debug("provider not configured, skipping")
			continue
		}
		if ctx.Err() != nil {
			res.Failed[p.Name] = ctx.Err()
			continue
		}

		res.Attempted = append(res.Attempted, p.Name)
		items, err := c.attempt(ctx, p)
		if err != nil {
			res.Failed[p.Name] = err
			log.WithField("provider", p.Name).WithError(err).Warn("provider failed")
			if c.Observer != nil {
				c.Observer(c.Capability, p.Name, err)
			}
			continue
		}
		log.WithField("provider", p.Name).WithField("count", len(items)).Debug("provider returned results")
		res.Items = append(res.Items, items...)
	}

	if len(res.Items) < c.Min && c.Static != nil {
		log.WithField("have", len(res.Items)).WithField("min", c.Min).Warn("providers insufficient, using static fallback")
		res.Items = c.Static(res.Items)
		res.UsedStatic = true
	}
	return res
}

func (c Chain[T]) attempt(ctx context.Context, p Provider[T]) (items []T, err error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("provider %s panicked: %v", p.Name, r)
		}
	}()
	return p.Fetch(ctx)
}
