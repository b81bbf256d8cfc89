// Package extract derives structured booking fields from raw patient
// utterances using ordered pattern rules. Every rule is total: it reports
// (value, ok) and never errors, so a miss simply leaves the field empty for
// this turn.
package extract

import (
	"regexp"
	"strings"
	"time"
)

const defaultMinReasonLength = 10

// Pipeline holds the configuration shared by all field extractors. It is
// stateless per call; callers apply it only to fields still unfilled, which
// makes re-running it a no-op for filled fields.
type Pipeline struct {
	minReasonLen int
	defaultHour  int
	loc          *time.Location
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMinReasonLength overrides the minimum utterance length accepted as a
// reason-for-visit.
func WithMinReasonLength(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.minReasonLen = n
		}
	}
}

// WithDefaultHour sets the local hour used when an utterance carries a date
// but no time. This should match the clinic's opening hour.
func WithDefaultHour(hour int) Option {
	return func(p *Pipeline) {
		if hour >= 0 && hour < 24 {
			p.defaultHour = hour
		}
	}
}

// WithClock injects the time source, used by tests to pin "today".
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline creates an extraction pipeline localized to loc.
func NewPipeline(loc *time.Location, opts ...Option) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	p := &Pipeline{
		minReasonLen: defaultMinReasonLength,
		defaultHour:  9,
		loc:          loc,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var (
	// Introductory phrase followed by a capitalized name. The phrase is
	// case-insensitive, the name is not: "my name is maria" is ambiguous,
	// "my name is Maria Lopez" is not.
	introNameRE = regexp.MustCompile(`(?i:my name is|i am|i'm|call me)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

	// An utterance that is nothing but a capitalized word sequence.
	bareNameRE = regexp.MustCompile(`^[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*$`)
)

// Name extracts a patient name. Intro-phrase patterns win over the
// bare-name form; the first successful pattern ends the scan.
func (p *Pipeline) Name(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := introNameRE.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if bareNameRE.MatchString(text) {
		return text, true
	}
	return "", false
}

// Reason accepts any utterance longer than the configured minimum that does
// not itself look like a bare name, verbatim.
func (p *Pipeline) Reason(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= p.minReasonLen {
		return "", false
	}
	if bareNameRE.MatchString(trimmed) {
		return "", false
	}
	return trimmed, true
}
