package session

import (
	"context"
	"time"

	"github.com/chronoware/tally/internal/timesheet"
)

// Phase is the conversation's current step. Transitions are owned by the
// conversation engine; everything else only reads it.
type Phase string

const (
	PhaseGathering    Phase = "gathering"
	PhaseConfirmation Phase = "confirmation"
	PhaseCompleted    Phase = "completed"
)

// DefaultTTL is the staleness window: a snapshot older than this is
// treated as absent and a fresh session starts.
const DefaultTTL = 24 * time.Hour

// Session is the accumulating multi-turn draft state for one user. The
// in-memory copy is the source of truth for the duration of a
// conversation; it is flushed to the store after every turn.
type Session struct {
	UserEmail         string             `json:"user_email"`
	Entries           []timesheet.Entry  `json:"entries"`
	Phase             Phase              `json:"phase"`
	SystemsInProgress []timesheet.System `json:"systems_in_progress"`
	LastInteraction   time.Time          `json:"last_interaction"`
}

// NewSession creates an empty gathering-phase session.
func NewSession(userEmail string) *Session {
	return &Session{
		UserEmail:       userEmail,
		Phase:           PhaseGathering,
		LastInteraction: time.Now().UTC(),
	}
}

// Reset clears all draft state and returns the session to gathering. The
// session object itself survives; only its contents are dropped.
func (s *Session) Reset() {
	s.Entries = nil
	s.SystemsInProgress = nil
	s.Phase = PhaseGathering
}

// ClearEntries drops the draft entries after a submit or cancel without
// touching the phase.
func (s *Session) ClearEntries() {
	s.Entries = nil
	s.SystemsInProgress = nil
}

// MissingFields is the union of per-entry missing fields across all
// entries, in required-field order. With no entries it is the full
// required set.
func (s *Session) MissingFields() []string {
	if len(s.Entries) == 0 {
		return append([]string(nil), timesheet.RequiredFields...)
	}

	seen := make(map[string]bool)
	for i := range s.Entries {
		for _, f := range s.Entries[i].MissingFields() {
			seen[f] = true
		}
	}

	var missing []string
	for _, f := range timesheet.RequiredFields {
		if seen[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// trackSystem records a backend as touched this session.
func (s *Session) trackSystem(sys timesheet.System) {
	for _, existing := range s.SystemsInProgress {
		if existing == sys {
			return
		}
	}
	s.SystemsInProgress = append(s.SystemsInProgress, sys)
}

// Store is the persistence boundary for session snapshots. Load returns
// (nil, nil) when no snapshot newer than maxAge exists. Save failures are
// non-fatal to the in-memory session; the manager logs and moves on.
type Store interface {
	LoadSession(ctx context.Context, userEmail string, maxAge time.Duration) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
}
