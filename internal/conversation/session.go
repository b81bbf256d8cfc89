package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/appointment-agent/internal/booking"
)

// ErrSessionNotFound indicates an unknown or expired session ID.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Session owns one booking record, one dialogue stage, and the append-only
// turn history for a single patient conversation. It is never shared between
// conversations.
type Session struct {
	ID        string         `json:"id"`
	Record    booking.Record `json:"record"`
	Stage     booking.Stage  `json:"stage"`
	History   []ChatMessage  `json:"history"`
	Epoch     uint64         `json:"epoch"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// clone returns a deep copy safe to mutate outside the session lock.
func (s *Session) clone() *Session {
	cp := *s
	cp.History = make([]ChatMessage, len(s.History))
	copy(cp.History, s.History)
	return &cp
}

// sessionEntry pairs a session with its two locks: turnMu serializes turns
// (one turn fully processed before the next), mu guards the state itself so
// a reset can land without waiting for an in-flight turn.
type sessionEntry struct {
	turnMu sync.Mutex
	mu     sync.Mutex
	sess   *Session
}

// Registry is the in-memory session owner. Distinct sessions are fully
// independent and may run concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*sessionEntry)}
}

// Create registers a new session in the Greeting stage.
func (r *Registry) Create() *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Stage:     booking.StageGreeting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.entries[sess.ID] = &sessionEntry{sess: sess}
	r.mu.Unlock()

	return sess.clone()
}

// Restore registers a session recovered from the external state store.
// An already-registered ID keeps its in-memory state.
func (r *Registry) Restore(sess *Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[sess.ID]; !exists {
		r.entries[sess.ID] = &sessionEntry{sess: sess.clone()}
	}
}

func (r *Registry) entry(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Snapshot returns a copy of the session's current state.
func (r *Registry) Snapshot(id string) (*Session, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.clone(), nil
}

// Reset returns the session to Greeting with a cleared record and history,
// bumping the epoch so results of any in-flight turn are discarded. It does
// not wait for an in-flight turn and owns no calendar mutation.
func (r *Registry) Reset(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Record.Reset()
	e.sess.Stage = booking.StageGreeting
	e.sess.History = nil
	e.sess.Epoch++
	e.sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Remove deletes a session outright (process teardown, tests).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// beginTurn serializes turn processing for the session and returns a
// mutable-outside-the-lock copy plus the epoch the turn started under.
// The caller must invoke the returned release func when done.
func (r *Registry) beginTurn(id string) (snapshot *Session, epoch uint64, release func(), err error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, 0, nil, ErrSessionNotFound
	}

	e.turnMu.Lock()
	e.mu.Lock()
	snapshot = e.sess.clone()
	epoch = e.sess.Epoch
	e.mu.Unlock()

	return snapshot, epoch, e.turnMu.Unlock, nil
}

// commitTurn writes the turn's resulting state back, unless a reset landed
// while the turn was in flight; stale results are discarded.
func (r *Registry) commitTurn(id string, epoch uint64, updated *Session) (applied bool) {
	e, ok := r.entry(id)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Epoch != epoch {
		return false
	}
	updated.UpdatedAt = time.Now().UTC()
	updated.Epoch = epoch
	e.sess = updated.clone()
	return true
}
