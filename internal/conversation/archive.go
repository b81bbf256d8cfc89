package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptArchive persists conversation transcripts to PostgreSQL for
// long-term history. All methods are nil-safe so the archive can be left
// unconfigured in deployments without a database.
type TranscriptArchive struct {
	db *sql.DB
}

// NewTranscriptArchive creates a transcript archive.
func NewTranscriptArchive(db *sql.DB) *TranscriptArchive {
	if db == nil {
		return nil
	}
	return &TranscriptArchive{db: db}
}

// ArchivedSession represents a session row in the database.
type ArchivedSession struct {
	ID                    uuid.UUID
	SessionID             string
	Status                string
	MessageCount          int
	PatientMessageCount   int
	AssistantMessageCount int
	StartedAt             time.Time
	LastMessageAt         *time.Time
	CompletedAt           *time.Time
}

// ArchivedMessage represents a transcript message row.
type ArchivedMessage struct {
	ID        uuid.UUID
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// EnsureSession creates the session row if it does not exist yet and
// returns its UUID.
func (a *TranscriptArchive) EnsureSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if a == nil || a.db == nil {
		return uuid.Nil, nil
	}

	var existingID uuid.UUID
	err := a.db.QueryRowContext(ctx,
		`SELECT id FROM sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return uuid.Nil, fmt.Errorf("conversation: failed to check existing session: %w", err)
	}

	newID := uuid.New()
	now := time.Now()

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, session_id, status,
			message_count, patient_message_count, assistant_message_count,
			started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, newID, sessionID, "active", 0, 0, 0, now, now, now)
	if err != nil {
		// Another process may have created it concurrently.
		if strings.Contains(err.Error(), "duplicate key") {
			return a.EnsureSession(ctx, sessionID)
		}
		return uuid.Nil, fmt.Errorf("conversation: failed to create session row: %w", err)
	}

	return newID, nil
}

// AppendMessage persists one transcript message and updates the session's
// counters.
func (a *TranscriptArchive) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if a == nil || a.db == nil {
		return nil
	}

	if _, err := a.EnsureSession(ctx, sessionID); err != nil {
		return err
	}

	now := time.Now()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO session_messages (
			id, session_id, role, content, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), sessionID, role, content, now)
	if err != nil {
		return fmt.Errorf("conversation: failed to insert message: %w", err)
	}

	counterColumn := "message_count"
	switch role {
	case ChatRoleUser:
		counterColumn = "patient_message_count"
	case ChatRoleAssistant:
		counterColumn = "assistant_message_count"
	}

	_, err = a.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE sessions SET
			message_count = message_count + 1,
			%s = %s + 1,
			last_message_at = $1,
			updated_at = $1
		WHERE session_id = $2
	`, counterColumn, counterColumn), now, sessionID)
	if err != nil {
		return fmt.Errorf("conversation: failed to update counters: %w", err)
	}

	return nil
}

// CompleteSession marks a session as completed once the booking committed.
func (a *TranscriptArchive) CompleteSession(ctx context.Context, sessionID string) error {
	if a == nil || a.db == nil {
		return nil
	}

	now := time.Now()
	_, err := a.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'completed',
			completed_at = $1,
			updated_at = $1
		WHERE session_id = $2 AND completed_at IS NULL
	`, now, sessionID)
	return err
}

// GetSession retrieves a session row by its public ID.
func (a *TranscriptArchive) GetSession(ctx context.Context, sessionID string) (*ArchivedSession, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}

	var rec ArchivedSession
	err := a.db.QueryRowContext(ctx, `
		SELECT id, session_id, status,
			message_count, patient_message_count, assistant_message_count,
			started_at, last_message_at, completed_at
		FROM sessions WHERE session_id = $1
	`, sessionID).Scan(
		&rec.ID, &rec.SessionID, &rec.Status,
		&rec.MessageCount, &rec.PatientMessageCount, &rec.AssistantMessageCount,
		&rec.StartedAt, &rec.LastMessageAt, &rec.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to load session row: %w", err)
	}
	return &rec, nil
}

// Transcript returns a session's messages in chronological order.
func (a *TranscriptArchive) Transcript(ctx context.Context, sessionID string) ([]ArchivedMessage, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to query transcript: %w", err)
	}
	defer rows.Close()

	var messages []ArchivedMessage
	for rows.Next() {
		var msg ArchivedMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: failed to read transcript: %w", err)
	}
	return messages, nil
}
