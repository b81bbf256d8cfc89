package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicflow/appointment-agent/internal/availability"
	"github.com/clinicflow/appointment-agent/internal/booking"
	"github.com/clinicflow/appointment-agent/internal/calendar"
	"github.com/clinicflow/appointment-agent/internal/extract"
	"github.com/clinicflow/appointment-agent/internal/observability/metrics"
	"github.com/clinicflow/appointment-agent/pkg/logging"
)

// ErrTurnSuperseded indicates a reset landed while the turn was in flight;
// the turn's result was discarded.
var ErrTurnSuperseded = errors.New("conversation: session was reset during processing")

// Deterministic replies. The commit path never delegates to the
// text-generation collaborator, so the booking side effect and the visible
// confirmation cannot disagree.
const (
	replyNoSlot            = "I'm sorry, but I couldn't find an available time slot. Please try a different date or time."
	replyBookingError      = "I apologize, but there was an error booking your appointment. Please try again in a moment."
	replyAvailabilityError = "I'm sorry, I couldn't check the calendar just now. Please try again."
	replyGenerationError   = "I'm sorry, something went wrong on my end. Could you say that again?"
	replyAlreadyBooked     = "Your appointment is already booked. If you need to make any changes, please contact the clinic directly."
)

// TurnResult is what a front end receives for one processed turn.
type TurnResult struct {
	SessionID string                 `json:"session_id"`
	Reply     string                 `json:"reply"`
	Stage     booking.Stage          `json:"stage"`
	Booking   booking.Record         `json:"booking"`
	Committed bool                   `json:"committed"`
	Event     *calendar.CreatedEvent `json:"event,omitempty"`
}

// EngineConfig wires the engine's collaborators and policies.
type EngineConfig struct {
	LLM          LLMClient
	Calendar     calendar.Collaborator
	Availability *availability.Engine
	Extractor    *extract.Pipeline
	Store        SessionStore       // optional write-through session state
	Archive      *TranscriptArchive // optional write-behind transcript log
	Metrics      *metrics.ConversationMetrics
	Logger       *logging.Logger

	DoctorName      string
	DoctorEmail     string
	LLMTimeout      time.Duration
	CalendarTimeout time.Duration
	Clock           func() time.Time
}

// Engine drives the booking conversation: extraction, stage transitions,
// availability negotiation, the commit protocol, and prompt assembly for
// non-committing turns.
type Engine struct {
	registry  *Registry
	llm       LLMClient
	cal       calendar.Collaborator
	avail     *availability.Engine
	extractor *extract.Pipeline
	store     SessionStore
	archive   *TranscriptArchive
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger

	doctorName  string
	doctorEmail string
	llmTimeout  time.Duration
	calTimeout  time.Duration
	now         func() time.Time
}

// NewEngine creates the conversation engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.LLM == nil {
		panic("conversation: llm client cannot be nil")
	}
	if cfg.Calendar == nil {
		panic("conversation: calendar collaborator cannot be nil")
	}
	if cfg.Availability == nil {
		panic("conversation: availability engine cannot be nil")
	}
	if cfg.Extractor == nil {
		panic("conversation: extractor cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.DoctorName == "" {
		cfg.DoctorName = "Dr. Smith"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Engine{
		registry:    NewRegistry(),
		llm:         cfg.LLM,
		cal:         cfg.Calendar,
		avail:       cfg.Availability,
		extractor:   cfg.Extractor,
		store:       cfg.Store,
		archive:     cfg.Archive,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		doctorName:  cfg.DoctorName,
		doctorEmail: cfg.DoctorEmail,
		llmTimeout:  cfg.LLMTimeout,
		calTimeout:  cfg.CalendarTimeout,
		now:         cfg.Clock,
	}
}

// StartSession opens a new conversation and produces the greeting turn.
// A generation failure degrades to a fixed greeting rather than failing
// session creation.
func (e *Engine) StartSession(ctx context.Context) (*TurnResult, error) {
	sess := e.registry.Create()
	e.metrics.SessionOpened()

	greeting := fmt.Sprintf("Hello! I can help you book an appointment with %s. May I have your name?", e.doctorName)

	llmCtx, cancel := e.withTimeout(ctx, e.llmTimeout)
	defer cancel()

	started := time.Now()
	resp, err := e.llm.Complete(llmCtx, LLMRequest{
		System:   []string{systemPrompt(e.doctorName, e.now())},
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "Hello"}},
	})
	e.metrics.ObserveLLMLatency(time.Since(started).Seconds())
	if err != nil {
		e.logger.Warn("greeting generation failed, using fallback", "error", err, "session_id", sess.ID)
	} else if resp.Text != "" {
		greeting = resp.Text
	}

	sess.History = append(sess.History, ChatMessage{Role: ChatRoleAssistant, Content: greeting})
	if e.registry.commitTurn(sess.ID, sess.Epoch, sess) {
		e.persist(ctx, sess.ID)
	}
	e.archiveMessage(sess.ID, ChatRoleAssistant, greeting)

	return &TurnResult{
		SessionID: sess.ID,
		Reply:     greeting,
		Stage:     sess.Stage,
		Booking:   sess.Record,
	}, nil
}

// PostMessage processes one user turn. Turns of one session are fully
// serialized; failures are scoped to the turn and leave the session state
// unchanged so the next turn can re-attempt.
func (e *Engine) PostMessage(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	sess, epoch, release, err := e.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Extraction pass: each rule applies only to its still-unfilled field,
	// honoring the record's strict fill order.
	e.applyExtraction(sess, text)
	sess.Stage = booking.Advance(sess.Stage, &sess.Record)

	// Confirmation detection runs independently of extraction.
	if booking.IsConfirmation(text) {
		if sess.Record.Confirmed {
			return e.finishTurn(ctx, sess, epoch, text, replyAlreadyBooked, nil, false, "already_booked")
		}
		if sess.Record.ReadyToCommit() {
			return e.commitBooking(ctx, sess, epoch, text)
		}
	}

	return e.generateReply(ctx, sess, epoch, text)
}

// ResetSession returns the session to Greeting. It takes effect immediately,
// even with a turn in flight, and never touches the calendar.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) error {
	if err := e.registry.Reset(sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) && e.store != nil {
			if sess, loadErr := e.store.Load(ctx, sessionID); loadErr == nil && sess != nil {
				e.registry.Restore(sess)
				return e.ResetSession(ctx, sessionID)
			}
		}
		return err
	}
	e.persist(ctx, sessionID)
	return nil
}

// History returns the session's transcript.
func (e *Engine) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	sess, err := e.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// Snapshot returns the session's current state for API consumers.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*Session, error) {
	return e.snapshot(ctx, sessionID)
}

// applyExtraction runs the ordered field rules against the utterance.
// Re-running against filled fields is a no-op.
func (e *Engine) applyExtraction(sess *Session, text string) {
	rec := &sess.Record

	if rec.PatientName == "" {
		if name, ok := e.extractor.Name(text); ok {
			rec.SetName(name)
		}
	}
	if rec.PatientName != "" && rec.ReasonForVisit == "" {
		if reason, ok := e.extractor.Reason(text); ok {
			if err := rec.SetReason(reason); err != nil {
				e.logger.Debug("reason rejected", "error", err, "session_id", sess.ID)
			}
		}
	}
	if rec.DoctorAssigned && rec.RequestedInstant == nil {
		if instant, ok := e.extractor.Instant(text); ok {
			if err := rec.SetRequestedInstant(instant); err != nil {
				e.logger.Debug("instant rejected", "error", err, "session_id", sess.ID)
			}
		}
	}
}

// commitBooking is the commit protocol: re-check availability, fall back to
// the next open slot, request creation, and mark the record confirmed. The
// reply is always deterministic.
func (e *Engine) commitBooking(ctx context.Context, sess *Session, epoch uint64, text string) (*TurnResult, error) {
	preferred := *sess.Record.RequestedInstant

	calCtx, cancel := e.withTimeout(ctx, e.calTimeout)
	defer cancel()

	started := time.Now()
	available, err := e.avail.Check(calCtx, e.cal, preferred)
	e.metrics.ObserveCalendarLatency("check", time.Since(started).Seconds())
	if err != nil {
		// Remote read failed: the whole turn is abandoned so state stays
		// unchanged and the user can simply re-confirm.
		e.logger.Error("availability re-check failed", "error", err, "session_id", sess.ID)
		e.metrics.ObserveTurn(sess.Stage.String(), "availability_error")
		return &TurnResult{
			SessionID: sess.ID,
			Reply:     replyAvailabilityError,
			Stage:     sess.Stage,
			Booking:   sess.Record,
		}, nil
	}

	final := preferred
	if !available {
		slot, err := e.avail.SuggestNext(calCtx, e.cal, preferred)
		if err != nil {
			e.logger.Error("forward search failed", "error", err, "session_id", sess.ID)
			e.metrics.ObserveTurn(sess.Stage.String(), "availability_error")
			return &TurnResult{
				SessionID: sess.ID,
				Reply:     replyAvailabilityError,
				Stage:     sess.Stage,
				Booking:   sess.Record,
			}, nil
		}
		if slot == nil {
			e.metrics.ObserveCommit("no_slot")
			return e.finishTurn(ctx, sess, epoch, text, replyNoSlot, nil, false, "commit_failed")
		}
		final = slot.Start
	}

	started = time.Now()
	created, err := e.cal.CreateEvent(calCtx, calendar.CreateRequest{
		PatientName: sess.Record.PatientName,
		DoctorName:  e.doctorName,
		DoctorEmail: e.doctorEmail,
		Start:       final,
		Duration:    e.avail.SlotDuration(),
		Notes:       sess.Record.ReasonForVisit,
	})
	e.metrics.ObserveCalendarLatency("create", time.Since(started).Seconds())
	if err == nil && (created == nil || created.ID == "") {
		err = calendar.ErrNoEventID
	}
	if err != nil {
		e.logger.Error("event creation failed", "error", err, "session_id", sess.ID)
		e.metrics.ObserveCommit("failed")
		return e.finishTurn(ctx, sess, epoch, text, replyBookingError, nil, false, "commit_failed")
	}

	if err := sess.Record.Confirm(); err != nil {
		// Creation succeeded but the record refused to confirm; surface as a
		// booking error so support can reconcile from the logs.
		e.logger.Error("record confirm failed after creation", "error", err,
			"session_id", sess.ID, "event_id", created.ID)
		e.metrics.ObserveCommit("failed")
		return e.finishTurn(ctx, sess, epoch, text, replyBookingError, nil, false, "commit_failed")
	}
	sess.Stage = booking.Advance(sess.Stage, &sess.Record)

	reply := confirmationReply(sess.Record.PatientName, final, e.doctorName, created)
	e.metrics.ObserveCommit("booked")
	e.logger.Info("appointment committed",
		"session_id", sess.ID,
		"event_id", created.ID,
		"start", final,
	)

	return e.finishTurn(ctx, sess, epoch, text, reply, created, true, "committed")
}

// generateReply assembles the annotated prompt and delegates to the
// text-generation collaborator.
func (e *Engine) generateReply(ctx context.Context, sess *Session, epoch uint64, text string) (*TurnResult, error) {
	hint, err := e.probeAvailability(ctx, sess)
	if err != nil {
		e.metrics.ObserveTurn(sess.Stage.String(), "availability_error")
		return &TurnResult{
			SessionID: sess.ID,
			Reply:     replyAvailabilityError,
			Stage:     sess.Stage,
			Booking:   sess.Record,
		}, nil
	}

	annotated := annotateUtterance(text, &sess.Record, e.doctorName, hint)

	messages := make([]ChatMessage, 0, len(sess.History)+1)
	messages = append(messages, sess.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: annotated})

	llmCtx, cancel := e.withTimeout(ctx, e.llmTimeout)
	defer cancel()

	started := time.Now()
	resp, err := e.llm.Complete(llmCtx, LLMRequest{
		System:   []string{systemPrompt(e.doctorName, e.now())},
		Messages: messages,
	})
	e.metrics.ObserveLLMLatency(time.Since(started).Seconds())
	if err != nil {
		// The exchange is not recorded, so the user's message can be
		// re-processed on the next attempt.
		e.logger.Error("generation failed", "error", err, "session_id", sess.ID)
		e.metrics.ObserveTurn(sess.Stage.String(), "generation_error")
		return &TurnResult{
			SessionID: sess.ID,
			Reply:     replyGenerationError,
			Stage:     sess.Stage,
			Booking:   sess.Record,
		}, nil
	}

	return e.finishTurn(ctx, sess, epoch, text, resp.Text, nil, false, "generated")
}

// probeAvailability computes the hint block for a turn that has a requested
// instant but no confirmation yet.
func (e *Engine) probeAvailability(ctx context.Context, sess *Session) (availabilityHint, error) {
	if sess.Record.RequestedInstant == nil || sess.Record.Confirmed {
		return availabilityHint{}, nil
	}
	preferred := *sess.Record.RequestedInstant

	calCtx, cancel := e.withTimeout(ctx, e.calTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		e.metrics.ObserveCalendarLatency("probe", time.Since(started).Seconds())
	}()

	available, err := e.avail.Check(calCtx, e.cal, preferred)
	if err != nil {
		e.logger.Error("availability probe failed", "error", err, "session_id", sess.ID)
		return availabilityHint{}, err
	}

	hint := availabilityHint{checked: true, available: available, preferred: preferred}
	if available {
		return hint, nil
	}

	suggested, err := e.avail.SuggestNext(calCtx, e.cal, preferred)
	if err != nil {
		e.logger.Error("availability probe failed", "error", err, "session_id", sess.ID)
		return availabilityHint{}, err
	}
	hint.suggested = suggested

	daySlots, err := e.avail.DaySlots(calCtx, e.cal, preferred)
	if err != nil {
		e.logger.Error("availability probe failed", "error", err, "session_id", sess.ID)
		return availabilityHint{}, err
	}
	hint.daySlots = daySlots
	return hint, nil
}

// finishTurn appends the exchange to history, commits the session state
// unless a reset superseded the turn, and persists.
func (e *Engine) finishTurn(ctx context.Context, sess *Session, epoch uint64, userText, reply string, event *calendar.CreatedEvent, committed bool, outcome string) (*TurnResult, error) {
	sess.History = append(sess.History,
		ChatMessage{Role: ChatRoleUser, Content: userText},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)

	if !e.registry.commitTurn(sess.ID, epoch, sess) {
		e.metrics.ObserveTurn(sess.Stage.String(), "discarded")
		return nil, ErrTurnSuperseded
	}

	e.persist(ctx, sess.ID)
	e.archiveMessage(sess.ID, ChatRoleUser, userText)
	e.archiveMessage(sess.ID, ChatRoleAssistant, reply)
	if committed {
		e.metrics.SessionClosed()
	}
	if committed && e.archive != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archive.CompleteSession(ctx, sess.ID); err != nil {
				e.logger.Warn("failed to mark session completed", "error", err, "session_id", sess.ID)
			}
		}()
	}
	e.metrics.ObserveTurn(sess.Stage.String(), outcome)

	return &TurnResult{
		SessionID: sess.ID,
		Reply:     reply,
		Stage:     sess.Stage,
		Booking:   sess.Record,
		Committed: committed,
		Event:     event,
	}, nil
}

// acquire serializes the turn and loads the session from the external store
// when it is not in memory (e.g. after a process restart).
func (e *Engine) acquire(ctx context.Context, sessionID string) (*Session, uint64, func(), error) {
	sess, epoch, release, err := e.registry.beginTurn(sessionID)
	if err == nil {
		return sess, epoch, release, nil
	}
	if !errors.Is(err, ErrSessionNotFound) || e.store == nil {
		return nil, 0, nil, err
	}

	stored, loadErr := e.store.Load(ctx, sessionID)
	if loadErr != nil || stored == nil {
		return nil, 0, nil, err
	}
	e.registry.Restore(stored)
	return e.registry.beginTurn(sessionID)
}

func (e *Engine) snapshot(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := e.registry.Snapshot(sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) || e.store == nil {
		return nil, err
	}
	stored, loadErr := e.store.Load(ctx, sessionID)
	if loadErr != nil || stored == nil {
		return nil, err
	}
	e.registry.Restore(stored)
	return e.registry.Snapshot(sessionID)
}

// persist write-throughs the session state to the external store. Failures
// are logged, never surfaced: the in-memory registry stays authoritative.
func (e *Engine) persist(ctx context.Context, sessionID string) {
	if e.store == nil {
		return
	}
	sess, err := e.registry.Snapshot(sessionID)
	if err != nil {
		return
	}
	if err := e.store.Save(ctx, sess); err != nil {
		e.logger.Warn("failed to persist session state", "error", err, "session_id", sessionID)
	}
}

// archiveMessage logs the message to the transcript archive off the critical
// path.
func (e *Engine) archiveMessage(sessionID, role, content string) {
	if e.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.AppendMessage(ctx, sessionID, role, content); err != nil {
			e.logger.Warn("failed to archive message", "error", err, "session_id", sessionID)
		}
	}()
}

func (e *Engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// confirmationReply is the deterministic commit confirmation.
func confirmationReply(patient string, instant time.Time, doctor string, event *calendar.CreatedEvent) string {
	reply := fmt.Sprintf(
		"Appointment confirmed!\n\nPatient: %s\nDate & Time: %s\nDoctor: %s\nEvent ID: %s\n",
		patient, formatInstant(instant), doctor, event.ID,
	)
	if event.Link != "" {
		reply += "\nView in calendar: " + event.Link + "\n"
	}
	reply += "\nIs there anything else I can help you with?"
	return reply
}
