package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
	"github.com/clinicflow/appointment-agent/pkg/logging"
)

// GoogleCalendar implements Collaborator on top of the Google Calendar API.
// Remote calls run behind a circuit breaker so a flapping backend fails fast
// instead of stalling every conversation turn.
type GoogleCalendar struct {
	service    *gcal.Service
	calendarID string
	loc        *time.Location
	breaker    *gobreaker.CircuitBreaker[any]
	logger     *logging.Logger
}

// NewGoogleCalendar wraps an authenticated calendar service. Credential
// resolution (OAuth, service accounts) belongs to the surrounding
// infrastructure; this type only consumes the resolved client.
func NewGoogleCalendar(service *gcal.Service, calendarID string, loc *time.Location, logger *logging.Logger) *GoogleCalendar {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	settings := gobreaker.Settings{
		Name:    "google-calendar",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("calendar circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &GoogleCalendar{
		service:    service,
		calendarID: calendarID,
		loc:        loc,
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
		logger:     logger,
	}
}

// ListEvents returns booked events overlapping [from, to), ordered by start.
func (g *GoogleCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]timewindow.Event, error) {
	result, err := g.breaker.Execute(func() (any, error) {
		return g.service.Events.List(g.calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("calendar: backend unavailable: %w", err)
		}
		return nil, fmt.Errorf("calendar: failed to list events: %w", err)
	}

	events := result.(*gcal.Events)
	out := make([]timewindow.Event, 0, len(events.Items))
	for _, item := range events.Items {
		start, ok := g.parseEventTime(item.Start)
		if !ok {
			continue
		}
		end, ok := g.parseEventTime(item.End)
		if !ok {
			continue
		}
		out = append(out, timewindow.Event{Start: start, End: end, Summary: item.Summary})
	}
	return out, nil
}

// CreateEvent books an appointment and returns the backend's identifier and
// link. A response without an identifier is a failure, not a success.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, req CreateRequest) (*CreatedEvent, error) {
	end := req.Start.Add(req.Duration)

	description := fmt.Sprintf("Patient: %s\nDoctor: %s", req.PatientName, req.DoctorName)
	if req.Notes != "" {
		description += "\nNotes: " + req.Notes
	}

	event := &gcal.Event{
		Summary:     "Appointment: " + req.PatientName,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}
	if req.DoctorEmail != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: req.DoctorEmail}}
	}

	result, err := g.breaker.Execute(func() (any, error) {
		return g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("calendar: backend unavailable: %w", err)
		}
		return nil, fmt.Errorf("calendar: failed to create event: %w", err)
	}

	created := result.(*gcal.Event)
	if created == nil || created.Id == "" {
		return nil, ErrNoEventID
	}

	g.logger.Info("calendar event created",
		"event_id", created.Id,
		"calendar_id", g.calendarID,
		"start", req.Start,
	)

	return &CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

// parseEventTime handles both timed events (dateTime) and all-day events
// (date), localizing naive values.
func (g *GoogleCalendar) parseEventTime(edt *gcal.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, g.loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
