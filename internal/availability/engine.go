// Package availability turns a preferred appointment instant into either a
// confirmed slot or ranked alternatives, negotiating against the calendar's
// existing bookings.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

// EventsProvider reads booked events from the calendar backend for a time range.
type EventsProvider interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]timewindow.Event, error)
}

// Engine generates candidate slots and searches forward for open ones.
// Business hours and slot duration are configuration, not constants.
type Engine struct {
	startHour    int
	endHour      int
	slotDuration time.Duration
	maxDaysAhead int
	loc          *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithBusinessHours overrides the default [9, 17) local-time booking window.
func WithBusinessHours(startHour, endHour int) Option {
	return func(e *Engine) {
		if startHour >= 0 && endHour <= 24 && startHour < endHour {
			e.startHour = startHour
			e.endHour = endHour
		}
	}
}

// WithSlotDuration overrides the default 30-minute appointment length.
func WithSlotDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.slotDuration = d
		}
	}
}

// WithMaxDaysAhead bounds the forward search horizon.
func WithMaxDaysAhead(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.maxDaysAhead = days
		}
	}
}

// NewEngine creates an availability engine operating in the given location.
func NewEngine(loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		startHour:    9,
		endHour:      17,
		slotDuration: 30 * time.Minute,
		maxDaysAhead: 30,
		loc:          loc,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SlotDuration reports the configured appointment length.
func (e *Engine) SlotDuration() time.Duration { return e.slotDuration }

// OpeningHour reports the configured start of business hours.
func (e *Engine) OpeningHour() int { return e.startHour }

// Location reports the engine's local timezone.
func (e *Engine) Location() *time.Location { return e.loc }

// GenerateSlots produces every candidate slot for the calendar day containing
// day, at a fixed stride from opening to closing hour, in ascending order.
// Deterministic for the same day.
func (e *Engine) GenerateSlots(day time.Time) []timewindow.Slot {
	local := day.In(e.loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), e.startHour, 0, 0, 0, e.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), e.endHour, 0, 0, 0, e.loc)

	var slots []timewindow.Slot
	for cur := open; cur.Before(close); cur = cur.Add(e.slotDuration) {
		slots = append(slots, timewindow.Slot{Start: cur, Duration: e.slotDuration})
	}
	return slots
}

// FilterAvailable removes any slot overlapping any existing event,
// preserving input order.
func FilterAvailable(slots []timewindow.Slot, events []timewindow.Event) []timewindow.Slot {
	available := make([]timewindow.Slot, 0, len(slots))
	for _, slot := range slots {
		conflict := false
		for _, ev := range events {
			if slot.OverlapsEvent(ev) {
				conflict = true
				break
			}
		}
		if !conflict {
			available = append(available, slot)
		}
	}
	return available
}

// IsFree reports whether no event overlaps [instant, instant+duration).
// It does not apply the business-hours rule; Check composes both.
func (e *Engine) IsFree(instant time.Time, events []timewindow.Event) bool {
	candidate := timewindow.Slot{Start: instant, Duration: e.slotDuration}
	for _, ev := range events {
		if candidate.OverlapsEvent(ev) {
			return false
		}
	}
	return true
}

// WithinBusinessHours reports whether instant's local hour falls inside the
// configured booking window.
func (e *Engine) WithinBusinessHours(instant time.Time) bool {
	h := instant.In(e.loc).Hour()
	return h >= e.startHour && h < e.endHour
}

// Check is the caller-facing availability test: the window must be both
// conflict-free and inside business hours. A failed calendar read surfaces
// as an error so the caller can report "couldn't check availability".
func (e *Engine) Check(ctx context.Context, provider EventsProvider, instant time.Time) (bool, error) {
	if !e.WithinBusinessHours(instant) {
		return false, nil
	}
	events, err := provider.ListEvents(ctx, instant, instant.Add(e.slotDuration))
	if err != nil {
		return false, fmt.Errorf("availability: failed to list events: %w", err)
	}
	return e.IsFree(instant, events), nil
}

// DaySlots returns the open slots for the calendar day containing day,
// in ascending order.
func (e *Engine) DaySlots(ctx context.Context, provider EventsProvider, day time.Time) ([]timewindow.Slot, error) {
	slots := e.GenerateSlots(day)
	if len(slots) == 0 {
		return nil, nil
	}
	from := slots[0].Start
	to := slots[len(slots)-1].End()

	events, err := provider.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability: failed to list events: %w", err)
	}
	return FilterAvailable(slots, events), nil
}

// SuggestNext forward-searches for the first open slot starting at or after
// preferred. On the seed day slots earlier than the preferred time are
// skipped, so the engine never proposes a time earlier than what was asked
// for; each subsequent day resets to the opening hour and any open slot is
// acceptable. Returns nil when the horizon is exhausted.
func (e *Engine) SuggestNext(ctx context.Context, provider EventsProvider, preferred time.Time) (*timewindow.Slot, error) {
	cursor := preferred.In(e.loc)

	for day := 0; day <= e.maxDaysAhead; day++ {
		open, err := e.DaySlots(ctx, provider, cursor)
		if err != nil {
			return nil, err
		}
		for _, slot := range open {
			if !slot.Start.Before(cursor) {
				s := slot
				return &s, nil
			}
		}
		next := cursor.AddDate(0, 0, 1)
		cursor = time.Date(next.Year(), next.Month(), next.Day(), e.startHour, 0, 0, 0, e.loc)
	}
	return nil, nil
}
