package images

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TobiSchelling/MarketBrief/internal/fallback"
)

// Capability labels image search in logs and metrics.
const Capability = "images"

// Resolver finds exactly Count images for a text.
type Resolver struct {
	Searchers []Searcher
	Timeout   time.Duration
	Log       logrus.FieldLogger
	Observer  fallback.Observer
}

// Resolve always returns exactly Count valid descriptors, topping up with
// placeholders when the searchers fall short.
func (r *Resolver) Resolve(ctx context.Context, text string) []Descriptor {
	terms := ExtractSearchTerms(text)

	providers := make([]fallback.Provider[Descriptor], 0, len(r.Searchers))
	for _, s := range r.Searchers {
		s := s
		providers = append(providers, fallback.Provider[Descriptor]{
			Name: s.Name(),
			Fetch: func(ctx context.Context) ([]Descriptor, error) {
				found, err := s.Search(ctx, terms)
				if err != nil {
					return nil, err
				}
				valid := found[:0:0]
				for _, d := range found {
					if ValidURL(d.URL) {
						valid = append(valid, d)
					}
				}
				return valid, nil
			},
		})
	}

	log := r.Log
	if log == nil {
		log = logrus.New()
	}
	res := fallback.Chain[Descriptor]{
		Capability: Capability,
		Providers:  providers,
		Min:        Count,
		Static:     fillPlaceholders,
		Timeout:    r.Timeout,
		Log:        log,
		Observer:   r.Observer,
	}.Run(ctx)

	out := res.Items
	if len(out) > Count {
		out = out[:Count]
	}
	log.WithField("terms", terms).WithField("placeholders", res.UsedStatic).Debug("images resolved")
	return out
}
