package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Dr. Smith", cfg.DoctorName)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, 9, cfg.BusinessHourStart)
	assert.Equal(t, 17, cfg.BusinessHourEnd)
	assert.Equal(t, 30, cfg.SlotDurationMins)
	assert.Equal(t, 30, cfg.MaxDaysAhead)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "primary", cfg.CalendarID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BUSINESS_HOUR_START", "8")
	t.Setenv("BUSINESS_HOUR_END", "18")
	t.Setenv("SLOT_DURATION_MINS", "45")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("USE_MEMORY_CALENDAR", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.BusinessHourStart)
	assert.Equal(t, 18, cfg.BusinessHourEnd)
	assert.Equal(t, 45, cfg.SlotDurationMins)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.UseMemoryCalendar)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SLOT_DURATION_MINS", "half an hour")
	t.Setenv("LLM_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 30, cfg.SlotDurationMins)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "inverted hours", mutate: func(c *Config) { c.BusinessHourStart = 17; c.BusinessHourEnd = 9 }, wantErr: true},
		{name: "zero duration", mutate: func(c *Config) { c.SlotDurationMins = 0 }, wantErr: true},
		{name: "negative look-ahead", mutate: func(c *Config) { c.MaxDaysAhead = -1 }, wantErr: true},
		{name: "bogus timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus_Mons" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate())

	loc := cfg.Location()
	assert.Equal(t, "America/New_York", loc.String())

	cfg.Timezone = "nowhere"
	assert.Equal(t, time.UTC, cfg.Location())
}
