package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/clinicflow/appointment-agent/internal/availability"
	"github.com/clinicflow/appointment-agent/internal/calendar"
	appconfig "github.com/clinicflow/appointment-agent/internal/config"
	"github.com/clinicflow/appointment-agent/internal/conversation"
	"github.com/clinicflow/appointment-agent/internal/extract"
	"github.com/clinicflow/appointment-agent/pkg/logging"
)

// chat is a terminal front end for the booking conversation. Type "reset"
// to start over and "quit" to exit.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewText(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	loc := cfg.Location()

	var cal calendar.Collaborator
	if cfg.UseMemoryCalendar {
		cal = calendar.NewMemoryCalendar()
	} else {
		service, err := gcal.NewService(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to create calendar service:", err)
			os.Exit(1)
		}
		cal = calendar.NewGoogleCalendar(service, cfg.CalendarID, loc, logger)
	}

	gemini, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create Gemini client:", err)
		os.Exit(1)
	}
	defer gemini.Close()

	engine := conversation.NewEngine(conversation.EngineConfig{
		LLM:      gemini,
		Calendar: cal,
		Availability: availability.NewEngine(loc,
			availability.WithBusinessHours(cfg.BusinessHourStart, cfg.BusinessHourEnd),
			availability.WithSlotDuration(time.Duration(cfg.SlotDurationMins)*time.Minute),
			availability.WithMaxDaysAhead(cfg.MaxDaysAhead),
		),
		Extractor:       extract.NewPipeline(loc, extract.WithMinReasonLength(cfg.MinReasonLength)),
		Logger:          logger,
		DoctorName:      cfg.DoctorName,
		DoctorEmail:     cfg.DoctorEmail,
		LLMTimeout:      cfg.LLMTimeout,
		CalendarTimeout: cfg.CalendarTimeout,
	})

	start, err := engine.StartSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start session:", err)
		os.Exit(1)
	}
	sessionID := start.SessionID

	fmt.Println("Appointment booking assistant. Type 'reset' to start over, 'quit' to exit.")
	fmt.Println()
	fmt.Println("Assistant:", start.Reply)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "quit", "exit":
			fmt.Println("Goodbye!")
			return
		case "reset":
			if err := engine.ResetSession(ctx, sessionID); err != nil {
				fmt.Fprintln(os.Stderr, "reset failed:", err)
				continue
			}
			fmt.Println("Conversation reset. Let's start over.")
			continue
		}

		result, err := engine.PostMessage(ctx, sessionID, text)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println("\nAssistant:", result.Reply)
		if result.Committed && result.Event != nil {
			fmt.Println("\n(event", result.Event.ID, "created)")
		}
	}
}
