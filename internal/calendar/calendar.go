// Package calendar defines the contract the booking engine holds against the
// clinic's calendar backend and provides a Google Calendar implementation
// plus an in-memory one for development and tests.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

// ErrNoEventID is returned when the backend accepts a creation but reports no
// identifier. Such a creation cannot be verified and is treated as a failure.
var ErrNoEventID = errors.New("calendar: created event has no id")

// CreateRequest carries everything needed to book one appointment.
type CreateRequest struct {
	PatientName string
	DoctorName  string
	DoctorEmail string
	Start       time.Time
	Duration    time.Duration
	Notes       string
}

// CreatedEvent is the backend's acknowledgement of a booked appointment.
type CreatedEvent struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// Collaborator is the calendar backend the engine negotiates with. It must
// serialize or reject conflicting concurrent creations; the engine treats a
// creation that later conflicts the same as any other creation failure.
type Collaborator interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]timewindow.Event, error)
	CreateEvent(ctx context.Context, req CreateRequest) (*CreatedEvent, error)
}
