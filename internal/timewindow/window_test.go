package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestSlotEnd(t *testing.T) {
	s := Slot{Start: at(9, 0), Duration: 30 * time.Minute}
	assert.Equal(t, at(9, 30), s.End())
}

func TestSlotOverlaps(t *testing.T) {
	base := Slot{Start: at(10, 0), Duration: 30 * time.Minute}

	tests := []struct {
		name  string
		other Slot
		want  bool
	}{
		{"identical", Slot{Start: at(10, 0), Duration: 30 * time.Minute}, true},
		{"partial overlap at tail", Slot{Start: at(10, 15), Duration: 30 * time.Minute}, true},
		{"partial overlap at head", Slot{Start: at(9, 45), Duration: 30 * time.Minute}, true},
		{"contained", Slot{Start: at(10, 5), Duration: 10 * time.Minute}, true},
		{"back to back after", Slot{Start: at(10, 30), Duration: 30 * time.Minute}, false},
		{"back to back before", Slot{Start: at(9, 30), Duration: 30 * time.Minute}, false},
		{"disjoint", Slot{Start: at(14, 0), Duration: 30 * time.Minute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			// Overlap is symmetric.
			assert.Equal(t, tt.want, tt.other.Overlaps(base))
		})
	}
}

func TestSlotOverlapsEvent(t *testing.T) {
	s := Slot{Start: at(14, 0), Duration: 30 * time.Minute}

	assert.True(t, s.OverlapsEvent(Event{Start: at(14, 0), End: at(14, 30)}))
	assert.True(t, s.OverlapsEvent(Event{Start: at(13, 45), End: at(14, 15)}))
	assert.False(t, s.OverlapsEvent(Event{Start: at(14, 30), End: at(15, 0)}))
	assert.False(t, s.OverlapsEvent(Event{Start: at(13, 30), End: at(14, 0)}))
}

func TestContains(t *testing.T) {
	start, end := at(9, 0), at(17, 0)

	assert.True(t, Contains(start, end, at(9, 0)), "start is inclusive")
	assert.True(t, Contains(start, end, at(12, 30)))
	assert.False(t, Contains(start, end, at(17, 0)), "end is exclusive")
	assert.False(t, Contains(start, end, at(8, 59)))
}
