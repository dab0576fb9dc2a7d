// Package stage defines the hand-off contract between pipeline stages.
//
// Every stage produces a Payload and consumes an Upstream. An Upstream is
// either empty, a single payload, or an ordered sequence of payloads (some of
// which may be nil). Extract normalizes the shape and picks the record the
// consuming stage needs, so a stage works the same whether it was chained or
// invoked standalone.
package stage

import (
	"time"
)

// Well-known payload keys.
const (
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTimestamp = "timestamp"

	KeyNewsData      = "news_data"
	KeySearchSummary = "search_summary"

	KeySummary     = "summary"
	KeyWordCount   = "word_count"
	KeySourceCount = "source_count"
	KeyTruncated   = "truncated"

	KeyFormattedSummary = "formatted_summary"
	KeyImages           = "images"
	KeyOriginalSummary  = "original_summary"

	KeyOriginalContent = "original_content"
	KeyTranslations    = "translations"

	KeyPDFCreated        = "pdf_created"
	KeyPDFPath           = "pdf_path"
	KeyPDFError          = "pdf_error"
	KeyTelegramSent      = "telegram_sent"
	KeyTelegramMessageID = "telegram_message_id"
	KeyTelegramError     = "telegram_error"
	KeyImageSends        = "image_sends"
	KeyImagesIncluded    = "images_included"
	KeyContentType       = "content_type"
	KeySuccess           = "success"
)

// Status tags the quality of a payload.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFallback Status = "fallback"
	StatusError    Status = "error"
)

// Payload is the record a stage hands to the next one. It is owned by the
// producing stage; consumers must Clone before changing it.
type Payload map[string]any

// Status returns the payload status. A missing status means ok.
func (p Payload) Status() Status {
	switch v := p[KeyStatus].(type) {
	case Status:
		if v != "" {
			return v
		}
	case string:
		if v != "" {
			return Status(v)
		}
	}
	return StatusOK
}

// Has reports whether key is present.
func (p Payload) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p[key]
	return ok
}

// String returns the string stored at key, or "".
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case Status:
		return string(v)
	}
	return ""
}

// Int returns the integer stored at key. JSON-decoded floats are accepted.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the boolean stored at key, or false.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Kind identifies the shape of an Upstream.
type Kind int

const (
	KindNone Kind = iota
	KindSingle
	KindSequence
)

// Upstream is the input handed to a stage: nothing, one payload, or an
// ordered sequence of payloads.
type Upstream struct {
	kind   Kind
	single Payload
	seq    []Payload
}

// None is the empty upstream.
func None() Upstream { return Upstream{} }

// Single wraps one payload. A nil payload yields None.
func Single(p Payload) Upstream {
	if p == nil {
		return None()
	}
	return Upstream{kind: KindSingle, single: p}
}

// Sequence wraps an ordered list of payloads. Nil entries stand for
// elements that are not records and are skipped by Extract.
func Sequence(ps ...Payload) Upstream {
	if ps == nil {
		return None()
	}
	return Upstream{kind: KindSequence, seq: ps}
}

// Kind returns the upstream shape.
func (u Upstream) Kind() Kind { return u.kind }

// Normalize flattens the upstream into an ordered list of records.
func (u Upstream) Normalize() []Payload {
	switch u.kind {
	case KindSingle:
		return []Payload{u.single}
	case KindSequence:
		out := make([]Payload, 0, len(u.seq))
		for _, p := range u.seq {
			if p != nil {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// Extract returns a copy of the first record carrying key. The boolean is
// false when no record qualifies; the caller then builds its fallback payload.
func Extract(u Upstream, key string) (Payload, bool) {
	for _, p := range u.Normalize() {
		if p.Has(key) {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Fallback builds a degraded payload stamped with status, reason and the
// time at, unless fields already carry a timestamp.
func Fallback(status Status, reason string, at time.Time, fields Payload) Payload {
	p := fields.Clone()
	if p == nil {
		p = Payload{}
	}
	p[KeyStatus] = status
	if reason != "" {
		p[KeyError] = reason
	}
	if _, ok := p[KeyTimestamp]; !ok {
		p[KeyTimestamp] = at
	}
	return p
}
