package calendar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

func TestMemoryCalendarCreateAndList(t *testing.T) {
	cal := NewMemoryCalendar()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	created, err := cal.CreateEvent(ctx, CreateRequest{
		PatientName: "Maria Lopez",
		DoctorName:  "Dr. Smith",
		Start:       start,
		Duration:    30 * time.Minute,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Link)

	events, err := cal.ListEvents(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Appointment: Maria Lopez", events[0].Summary)
	assert.True(t, start.Equal(events[0].Start))
	assert.True(t, start.Add(30*time.Minute).Equal(events[0].End))
}

func TestMemoryCalendarRejectsConflicts(t *testing.T) {
	cal := NewMemoryCalendar()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	_, err := cal.CreateEvent(ctx, CreateRequest{PatientName: "First", Start: start, Duration: 30 * time.Minute})
	require.NoError(t, err)

	_, err = cal.CreateEvent(ctx, CreateRequest{PatientName: "Second", Start: start.Add(15 * time.Minute), Duration: 30 * time.Minute})
	assert.Error(t, err)

	// Back-to-back does not conflict (half-open windows).
	_, err = cal.CreateEvent(ctx, CreateRequest{PatientName: "Third", Start: start.Add(30 * time.Minute), Duration: 30 * time.Minute})
	assert.NoError(t, err)
}

func TestMemoryCalendarListRange(t *testing.T) {
	cal := NewMemoryCalendar()
	ctx := context.Background()

	cal.Seed(timewindow.Event{
		Start:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		Summary: "morning",
	})
	cal.Seed(timewindow.Event{
		Start:   time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
		Summary: "afternoon",
	})

	events, err := cal.ListEvents(ctx,
		time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "afternoon", events[0].Summary)
}

func TestMemoryCalendarConcurrentCreations(t *testing.T) {
	cal := NewMemoryCalendar()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cal.CreateEvent(ctx, CreateRequest{
				PatientName: "Racer",
				Start:       start,
				Duration:    30 * time.Minute,
			}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one concurrent creation of the same window may win")
}

func TestMemoryCalendarCancelledContext(t *testing.T) {
	cal := NewMemoryCalendar()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cal.ListEvents(ctx, time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}
