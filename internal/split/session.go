// Package split coordinates loot-split sessions: an organizer announces a
// pool backed by a screenshot, members join the roster, and finalizing the
// session divides the pool evenly and credits every participant through the
// ledger. Sessions are volatile — they live in a process-scoped registry and
// are lost on restart, which is accepted: a split runs start to finish within
// minutes.
package split

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the roster-and-pool state for one loot split, keyed in the
// registry by the ID of its Discord announcement message.
type Session struct {
	// ID correlates log lines for one split; it never leaves the process.
	ID string

	// OwnerID is the Discord ID of the organizer who started the split.
	OwnerID string

	// Total is the silver pool to divide.
	Total int64

	// EvidenceURL points at the screenshot attached to the announcement.
	EvidenceURL string

	mu           sync.Mutex
	participants []string
	closed       bool
}

func newSession(ownerID string, total int64, evidenceURL string) *Session {
	return &Session{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Total:       total,
		EvidenceURL: evidenceURL,
	}
}

// add appends the member to the roster. Reports ErrAlreadyJoined for
// duplicates and ErrStaleSession once the session is closed.
func (s *Session) add(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStaleSession
	}
	for _, id := range s.participants {
		if id == userID {
			return ErrAlreadyJoined
		}
	}
	s.participants = append(s.participants, userID)
	return nil
}

// remove drops the member from the roster, preserving join order. Removing
// someone who is not on the roster is a no-op.
func (s *Session) remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i, id := range s.participants {
		if id == userID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			return
		}
	}
}

// Roster returns a copy of the participant IDs in join order.
func (s *Session) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.participants))
	copy(out, s.participants)
	return out
}

// close marks the session finalized and returns the roster it closed with.
// An empty roster refuses to close with ErrEmptyRoster, leaving the session
// open; the check shares the lock with the close so a concurrent remove can
// never empty the roster between them. Only the first call succeeds; later
// calls report ErrStaleSession, which is what makes finalize one-shot even
// under races.
func (s *Session) close() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStaleSession
	}
	if len(s.participants) == 0 {
		return nil, ErrEmptyRoster
	}
	s.closed = true
	return s.participants, nil
}
