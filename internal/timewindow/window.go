// Package timewindow provides the value types and interval arithmetic the
// scheduling engine is built on. All windows are half-open: [start, end).
package timewindow

import "time"

// Slot is a fixed-duration candidate appointment window.
type Slot struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// End returns the exclusive end of the slot.
func (s Slot) End() time.Time {
	return s.Start.Add(s.Duration)
}

// Overlaps reports whether two slots share any instant.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

// OverlapsEvent reports whether the slot collides with an existing event.
func (s Slot) OverlapsEvent(e Event) bool {
	return s.Start.Before(e.End) && e.Start.Before(s.End())
}

// Event is a booked window on the external calendar. The engine never
// mutates events; it only reads them for conflict detection.
type Event struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary"`
}

// Contains reports whether instant falls inside [start, end).
func Contains(start, end, instant time.Time) bool {
	return !instant.Before(start) && instant.Before(end)
}
