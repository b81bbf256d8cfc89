package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/appointment-agent/internal/timewindow"
)

// fakeProvider serves a fixed event set for any requested range.
type fakeProvider struct {
	events []timewindow.Event
	err    error
	calls  int
}

func (f *fakeProvider) ListEvents(ctx context.Context, from, to time.Time) ([]timewindow.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []timewindow.Event
	for _, ev := range f.events {
		if ev.Start.Before(to) && from.Before(ev.End) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return NewEngine(loc)
}

func localDate(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestGenerateSlots(t *testing.T) {
	e := newTestEngine(t)
	day := localDate(t, 2026, 3, 2, 0, 0)

	slots := e.GenerateSlots(day)

	// 9:00 to 17:00 at 30-minute stride = 16 slots.
	require.Len(t, slots, 16)
	assert.Equal(t, localDate(t, 2026, 3, 2, 9, 0), slots[0].Start)
	assert.Equal(t, localDate(t, 2026, 3, 2, 16, 30), slots[len(slots)-1].Start)

	for i, slot := range slots {
		assert.Equal(t, 30*time.Minute, slot.Duration)
		if i > 0 {
			assert.True(t, slots[i-1].Start.Before(slot.Start), "slots must be strictly increasing")
		}
	}
}

func TestGenerateSlotsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	day := localDate(t, 2026, 3, 2, 13, 45) // mid-day input, same calendar day

	assert.Equal(t, e.GenerateSlots(day), e.GenerateSlots(day.Add(2*time.Hour)))
}

func TestGenerateSlotsConfiguredHours(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	e := NewEngine(loc, WithBusinessHours(8, 12), WithSlotDuration(time.Hour))

	slots := e.GenerateSlots(localDate(t, 2026, 3, 2, 0, 0))

	require.Len(t, slots, 4)
	assert.Equal(t, 8, slots[0].Start.Hour())
	assert.Equal(t, 11, slots[3].Start.Hour())
}

func TestFilterAvailable(t *testing.T) {
	e := newTestEngine(t)
	day := localDate(t, 2026, 3, 2, 0, 0)
	slots := e.GenerateSlots(day)

	events := []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 10, 0), End: localDate(t, 2026, 3, 2, 11, 0), Summary: "existing"},
		{Start: localDate(t, 2026, 3, 2, 14, 15), End: localDate(t, 2026, 3, 2, 14, 45), Summary: "straddles two slots"},
	}

	open := FilterAvailable(slots, events)

	// 10:00 and 10:30 covered by the first event, 14:00 and 14:30 by the second.
	assert.Len(t, open, 12)
	for _, slot := range open {
		for _, ev := range events {
			assert.False(t, slot.OverlapsEvent(ev), "filtered slot %v overlaps event %v", slot.Start, ev)
		}
	}
	// Order preserved.
	for i := 1; i < len(open); i++ {
		assert.True(t, open[i-1].Start.Before(open[i].Start))
	}
}

func TestFilterAvailableNoEvents(t *testing.T) {
	e := newTestEngine(t)
	slots := e.GenerateSlots(localDate(t, 2026, 3, 2, 0, 0))

	assert.Equal(t, slots, FilterAvailable(slots, nil))
}

func TestIsFree(t *testing.T) {
	e := newTestEngine(t)
	events := []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 14, 0), End: localDate(t, 2026, 3, 2, 14, 30)},
	}

	assert.False(t, e.IsFree(localDate(t, 2026, 3, 2, 14, 0), events))
	assert.False(t, e.IsFree(localDate(t, 2026, 3, 2, 13, 45), events))
	assert.True(t, e.IsFree(localDate(t, 2026, 3, 2, 14, 30), events))
	assert.True(t, e.IsFree(localDate(t, 2026, 3, 2, 9, 0), events))
}

func TestWithinBusinessHours(t *testing.T) {
	e := newTestEngine(t)

	assert.True(t, e.WithinBusinessHours(localDate(t, 2026, 3, 2, 9, 0)))
	assert.True(t, e.WithinBusinessHours(localDate(t, 2026, 3, 2, 16, 59)))
	assert.False(t, e.WithinBusinessHours(localDate(t, 2026, 3, 2, 17, 0)))
	assert.False(t, e.WithinBusinessHours(localDate(t, 2026, 3, 2, 8, 30)))
	assert.False(t, e.WithinBusinessHours(localDate(t, 2026, 3, 2, 22, 0)))
}

func TestCheck(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("free and in hours", func(t *testing.T) {
		provider := &fakeProvider{}
		ok, err := e.Check(ctx, provider, localDate(t, 2026, 3, 2, 10, 0))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("conflict", func(t *testing.T) {
		provider := &fakeProvider{events: []timewindow.Event{
			{Start: localDate(t, 2026, 3, 2, 10, 0), End: localDate(t, 2026, 3, 2, 10, 30)},
		}}
		ok, err := e.Check(ctx, provider, localDate(t, 2026, 3, 2, 10, 0))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("free but outside business hours", func(t *testing.T) {
		provider := &fakeProvider{}
		ok, err := e.Check(ctx, provider, localDate(t, 2026, 3, 2, 19, 0))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, provider.calls, "out-of-hours check should not hit the calendar")
	})

	t.Run("calendar read failure", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("boom")}
		_, err := e.Check(ctx, provider, localDate(t, 2026, 3, 2, 10, 0))
		assert.Error(t, err)
	})
}

func TestSuggestNextSameDay(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Requested 2:00pm conflicts with a 2:00-2:30pm event; first open slot at
	// or after the preferred time is 2:30pm the same day.
	provider := &fakeProvider{events: []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 14, 0), End: localDate(t, 2026, 3, 2, 14, 30)},
	}}

	slot, err := e.SuggestNext(ctx, provider, localDate(t, 2026, 3, 2, 14, 0))
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, localDate(t, 2026, 3, 2, 14, 30), slot.Start)
	assert.Equal(t, 30*time.Minute, slot.Duration)
}

func TestSuggestNextNeverEarlierOnSeedDay(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Everything from 15:00 onward is booked; earlier slots are open but must
	// not be proposed on the seed day. Next day is free, so 9:00am wins.
	provider := &fakeProvider{events: []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 15, 0), End: localDate(t, 2026, 3, 2, 17, 0)},
	}}

	slot, err := e.SuggestNext(ctx, provider, localDate(t, 2026, 3, 2, 15, 0))
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, localDate(t, 2026, 3, 3, 9, 0), slot.Start)
}

func TestSuggestNextSkipsFullyBookedDays(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	provider := &fakeProvider{events: []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 9, 0), End: localDate(t, 2026, 3, 2, 17, 0)},
		{Start: localDate(t, 2026, 3, 3, 9, 0), End: localDate(t, 2026, 3, 3, 17, 0)},
	}}

	slot, err := e.SuggestNext(ctx, provider, localDate(t, 2026, 3, 2, 10, 0))
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, localDate(t, 2026, 3, 4, 9, 0), slot.Start)
}

func TestSuggestNextOutOfHoursPreference(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	provider := &fakeProvider{}

	// 7pm is outside business hours: nothing later that day qualifies, so the
	// search lands on the next day's opening slot.
	slot, err := e.SuggestNext(ctx, provider, localDate(t, 2026, 3, 2, 19, 0))
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, localDate(t, 2026, 3, 3, 9, 0), slot.Start)
	assert.Equal(t, 9, slot.Start.Hour())
}

func TestSuggestNextHorizonExhausted(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	e := NewEngine(loc, WithMaxDaysAhead(2))
	ctx := context.Background()

	// Every day is solid for well past the horizon.
	var events []timewindow.Event
	for d := 0; d < 10; d++ {
		events = append(events, timewindow.Event{
			Start: localDate(t, 2026, 3, 2+d, 0, 0),
			End:   localDate(t, 2026, 3, 2+d, 23, 59),
		})
	}
	provider := &fakeProvider{events: events}

	slot, err := e.SuggestNext(ctx, provider, localDate(t, 2026, 3, 2, 10, 0))
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSuggestNextPropagatesProviderError(t *testing.T) {
	e := newTestEngine(t)
	provider := &fakeProvider{err: errors.New("calendar down")}

	_, err := e.SuggestNext(context.Background(), provider, localDate(t, 2026, 3, 2, 10, 0))
	assert.Error(t, err)
}

func TestDaySlots(t *testing.T) {
	e := newTestEngine(t)
	provider := &fakeProvider{events: []timewindow.Event{
		{Start: localDate(t, 2026, 3, 2, 9, 0), End: localDate(t, 2026, 3, 2, 12, 0)},
	}}

	open, err := e.DaySlots(context.Background(), provider, localDate(t, 2026, 3, 2, 0, 0))
	require.NoError(t, err)
	require.NotEmpty(t, open)
	assert.Equal(t, localDate(t, 2026, 3, 2, 12, 0), open[0].Start)
	assert.Len(t, open, 10)
}
