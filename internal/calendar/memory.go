package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

// MemoryCalendar is a thread-safe in-process Collaborator used by the CLI,
// development mode, and tests. Conflicting creations are rejected, mirroring
// the contract a real backend must uphold.
type MemoryCalendar struct {
	mu     sync.Mutex
	events []timewindow.Event
	ids    []string
}

// NewMemoryCalendar creates an empty in-memory calendar.
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{}
}

// Seed inserts an event directly, bypassing conflict checks. Test helper.
func (m *MemoryCalendar) Seed(ev timewindow.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	m.ids = append(m.ids, uuid.NewString())
}

// ListEvents returns events overlapping [from, to) ordered by start time.
func (m *MemoryCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]timewindow.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []timewindow.Event
	for _, ev := range m.events {
		if ev.Start.Before(to) && from.Before(ev.End) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// CreateEvent books the window if it is still free, rejecting conflicts the
// way a serializing backend would.
func (m *MemoryCalendar) CreateEvent(ctx context.Context, req CreateRequest) (*CreatedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidate := timewindow.Slot{Start: req.Start, Duration: req.Duration}
	for _, ev := range m.events {
		if candidate.OverlapsEvent(ev) {
			return nil, fmt.Errorf("calendar: window %s conflicts with %q", req.Start, ev.Summary)
		}
	}

	id := uuid.NewString()
	m.events = append(m.events, timewindow.Event{
		Start:   req.Start,
		End:     req.Start.Add(req.Duration),
		Summary: "Appointment: " + req.PatientName,
	})
	m.ids = append(m.ids, id)

	return &CreatedEvent{ID: id, Link: "memory://events/" + id}, nil
}
