package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/clinicflow/appointment-agent/internal/api/router"
	"github.com/clinicflow/appointment-agent/internal/availability"
	"github.com/clinicflow/appointment-agent/internal/calendar"
	appconfig "github.com/clinicflow/appointment-agent/internal/config"
	"github.com/clinicflow/appointment-agent/internal/conversation"
	"github.com/clinicflow/appointment-agent/internal/extract"
	"github.com/clinicflow/appointment-agent/internal/observability/metrics"
	"github.com/clinicflow/appointment-agent/pkg/logging"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting appointment-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"doctor", cfg.DoctorName,
	)

	ctx := context.Background()
	loc := cfg.Location()

	// Calendar collaborator
	var cal calendar.Collaborator
	if cfg.UseMemoryCalendar {
		logger.Info("using in-memory calendar")
		cal = calendar.NewMemoryCalendar()
	} else {
		service, err := gcal.NewService(ctx)
		if err != nil {
			logger.Error("failed to create calendar service", "error", err)
			os.Exit(1)
		}
		cal = calendar.NewGoogleCalendar(service, cfg.CalendarID, loc, logger)
	}

	// Text-generation collaborator
	gemini, err := conversation.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to create Gemini client", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()

	// Optional Redis-backed session state
	var store conversation.SessionStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		store = conversation.NewRedisSessionStore(redis.NewClient(opts), nil)
		logger.Info("session state persisted to redis", "addr", cfg.RedisAddr)
	}

	// Optional Postgres transcript archive
	var archive *conversation.TranscriptArchive
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archive = conversation.NewTranscriptArchive(db)
		logger.Info("transcript archive enabled")
	}

	reg := prometheus.NewRegistry()
	convMetrics := metrics.NewConversationMetrics(reg)

	engine := conversation.NewEngine(conversation.EngineConfig{
		LLM:      gemini,
		Calendar: cal,
		Availability: availability.NewEngine(loc,
			availability.WithBusinessHours(cfg.BusinessHourStart, cfg.BusinessHourEnd),
			availability.WithSlotDuration(time.Duration(cfg.SlotDurationMins)*time.Minute),
			availability.WithMaxDaysAhead(cfg.MaxDaysAhead),
		),
		Extractor:       extract.NewPipeline(loc, extract.WithMinReasonLength(cfg.MinReasonLength)),
		Store:           store,
		Archive:         archive,
		Metrics:         convMetrics,
		Logger:          logger,
		DoctorName:      cfg.DoctorName,
		DoctorEmail:     cfg.DoctorEmail,
		LLMTimeout:      cfg.LLMTimeout,
		CalendarTimeout: cfg.CalendarTimeout,
	})

	r := router.New(&router.Config{
		Conversation: conversation.NewHandler(engine, logger),
		Registry:     reg,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
