package booking

import "strings"

// Stage is the dialogue's position in its fixed information-gathering
// sequence. Stages only advance; Reset is the sole way back to Greeting.
type Stage int

const (
	StageGreeting Stage = iota
	StageCollectingName
	StageCollectingReason
	StageCollectingTime
	StageAwaitingConfirmation
	StageCompleted
)

var stageNames = map[Stage]string{
	StageGreeting:             "greeting",
	StageCollectingName:       "collecting_name",
	StageCollectingReason:     "collecting_reason",
	StageCollectingTime:       "collecting_time",
	StageAwaitingConfirmation: "awaiting_confirmation",
	StageCompleted:            "completed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the stage name for JSON snapshots.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText restores a stage from its name. Unknown names map to
// Greeting so a corrupted snapshot degrades to a restart, not a fault.
func (s *Stage) UnmarshalText(b []byte) error {
	name := string(b)
	for stage, n := range stageNames {
		if n == name {
			*s = stage
			return nil
		}
	}
	*s = StageGreeting
	return nil
}

// NextStage computes the stage the record implies: the first stage whose
// field is still unset, AwaitingConfirmation once all three are set, and
// Completed once confirmed.
func NextStage(r *Record) Stage {
	switch {
	case r.Confirmed:
		return StageCompleted
	case r.PatientName == "":
		return StageCollectingName
	case r.ReasonForVisit == "":
		return StageCollectingReason
	case r.RequestedInstant == nil:
		return StageCollectingTime
	default:
		return StageAwaitingConfirmation
	}
}

// Advance moves current forward to the record-implied stage, never backward.
func Advance(current Stage, r *Record) Stage {
	next := NextStage(r)
	if next < current {
		return current
	}
	return next
}

// affirmativeTokens are scanned by substring containment, matching how
// patients actually reply ("yes please", "ok book it").
var affirmativeTokens = []string{
	"yes", "confirm", "book it", "schedule", "that works",
	"ok", "sure", "proceed", "go ahead",
}

// IsConfirmation reports whether the utterance contains an affirmative token,
// case-insensitively.
func IsConfirmation(text string) bool {
	lower := strings.ToLower(text)
	for _, token := range affirmativeTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
