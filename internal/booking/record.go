// Package booking owns the structured booking record and the finite-state
// dialogue tracker that fills it from extracted fields.
package booking

import (
	"errors"
	"time"
)

// Fill-order violations. Fields fill strictly left to right: name before
// reason before instant before confirmation.
var (
	ErrNameRequired     = errors.New("booking: patient name must be set first")
	ErrReasonRequired   = errors.New("booking: reason for visit must be set first")
	ErrAlreadyConfirmed = errors.New("booking: record already confirmed")
	ErrNotReady         = errors.New("booking: record is missing required fields")
)

// Record is the structured booking extracted so far for one conversation.
// It is owned exclusively by one session; callers must not share it across
// sessions.
type Record struct {
	PatientName      string     `json:"patient_name,omitempty"`
	ReasonForVisit   string     `json:"reason_for_visit,omitempty"`
	RequestedInstant *time.Time `json:"requested_instant,omitempty"`
	DoctorAssigned   bool       `json:"doctor_assigned"`
	Confirmed        bool       `json:"confirmed"`
}

// SetName records the patient name. A no-op once filled.
func (r *Record) SetName(name string) {
	if r.PatientName == "" && name != "" {
		r.PatientName = name
	}
}

// SetReason records the reason for visit and assigns the deployment's single
// doctor. Rejected until a name is present; a no-op once filled.
func (r *Record) SetReason(reason string) error {
	if r.PatientName == "" {
		return ErrNameRequired
	}
	if r.ReasonForVisit != "" || reason == "" {
		return nil
	}
	r.ReasonForVisit = reason
	r.DoctorAssigned = true
	return nil
}

// SetRequestedInstant records the desired appointment time. Rejected until a
// reason is present; a no-op once filled.
func (r *Record) SetRequestedInstant(t time.Time) error {
	if r.PatientName == "" {
		return ErrNameRequired
	}
	if r.ReasonForVisit == "" {
		return ErrReasonRequired
	}
	if r.RequestedInstant != nil || t.IsZero() {
		return nil
	}
	instant := t
	r.RequestedInstant = &instant
	return nil
}

// Confirm marks the booking committed. It succeeds exactly once per record
// lifetime and requires every earlier field to be filled.
func (r *Record) Confirm() error {
	if r.Confirmed {
		return ErrAlreadyConfirmed
	}
	if r.PatientName == "" || r.ReasonForVisit == "" || r.RequestedInstant == nil {
		return ErrNotReady
	}
	r.Confirmed = true
	return nil
}

// ReadyToCommit reports whether a confirmation may trigger a calendar commit.
func (r *Record) ReadyToCommit() bool {
	return !r.Confirmed && r.PatientName != "" && r.RequestedInstant != nil
}

// Reset clears every field. The caller owns any calendar cleanup; reset
// never mutates the calendar.
func (r *Record) Reset() {
	*r = Record{}
}
