package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Clinic identity (single-doctor deployment)
	DoctorName  string
	DoctorEmail string

	// Scheduling rules
	Timezone          string
	BusinessHourStart int
	BusinessHourEnd   int
	SlotDurationMins  int
	MaxDaysAhead      int
	MinReasonLength   int

	// Gemini text generation
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	// Google Calendar
	CalendarID        string
	CalendarTimeout   time.Duration
	UseMemoryCalendar bool

	// Session state (optional Redis-backed store)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Transcript archive (optional, Postgres)
	DatabaseURL string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DoctorName:  getEnv("DOCTOR_NAME", "Dr. Smith"),
		DoctorEmail: getEnv("DOCTOR_EMAIL", ""),

		Timezone:          getEnv("TIMEZONE", "America/New_York"),
		BusinessHourStart: getEnvAsInt("BUSINESS_HOUR_START", 9),
		BusinessHourEnd:   getEnvAsInt("BUSINESS_HOUR_END", 17),
		SlotDurationMins:  getEnvAsInt("SLOT_DURATION_MINS", 30),
		MaxDaysAhead:      getEnvAsInt("MAX_DAYS_AHEAD", 30),
		MinReasonLength:   getEnvAsInt("MIN_REASON_LENGTH", 10),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMTimeout:   getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		CalendarID:        getEnv("CALENDAR_ID", "primary"),
		CalendarTimeout:   getEnvAsDuration("CALENDAR_TIMEOUT", 10*time.Second),
		UseMemoryCalendar: getEnvAsBool("USE_MEMORY_CALENDAR", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

// Validate rejects configurations the scheduling engine cannot operate under.
func (c *Config) Validate() error {
	if c.BusinessHourStart < 0 || c.BusinessHourEnd > 24 || c.BusinessHourStart >= c.BusinessHourEnd {
		return fmt.Errorf("config: invalid business hours [%d, %d)", c.BusinessHourStart, c.BusinessHourEnd)
	}
	if c.SlotDurationMins <= 0 {
		return fmt.Errorf("config: slot duration must be positive, got %d", c.SlotDurationMins)
	}
	if c.MaxDaysAhead <= 0 {
		return fmt.Errorf("config: max days ahead must be positive, got %d", c.MaxDaysAhead)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
