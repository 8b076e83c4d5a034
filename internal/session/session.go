package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/elicitation"
	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrAlreadySubmitted = errors.New("feedback already submitted for this participant")
	ErrExists           = errors.New("session already started for this participant")
)

// Session is the typed state of one participant's post-chat flow.
// Callers hold Mu while reading or changing anything but the immutable fields.
type Session struct {
	ParticipantID string
	CreatedAt     time.Time
	Turns         []transcript.Turn
	UserText      string

	Mu             sync.Mutex
	Detection      *Future
	Form           *elicitation.Form
	ExperienceDone bool

	// Kept outside Mu so the manager can sweep without taking session locks.
	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}
