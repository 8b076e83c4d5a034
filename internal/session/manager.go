package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/confide/internal/transcript"
)

// Manager owns every live session, keyed by participant id. Finished participants
// leave a tombstone so a later request sees "already submitted" rather than a fresh form.
type Manager struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	sessions   map[string]*Session
	tombstones map[string]time.Time
}

func NewManager(ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*Session),
		tombstones: make(map[string]time.Time),
	}
}

// Start creates the session for a participant. A participant with a live session or
// a submitted one cannot start again.
func (m *Manager) Start(participantID string, turns []transcript.Turn) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tombstones[participantID]; ok {
		return nil, ErrAlreadySubmitted
	}
	if _, ok := m.sessions[participantID]; ok {
		return nil, ErrExists
	}
	now := m.now()
	s := &Session{
		ParticipantID: participantID,
		CreatedAt:     now,
		Turns:         turns,
		UserText:      transcript.UserText(turns),
	}
	s.touch(now)
	m.sessions[participantID] = s
	return s, nil
}

// Get returns the live session and marks it as recently used.
func (m *Manager) Get(participantID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[participantID]
	_, done := m.tombstones[participantID]
	m.mu.Unlock()

	if done {
		return nil, ErrAlreadySubmitted
	}
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Finish drops the in-memory state of a submitted participant.
func (m *Manager) Finish(participantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, participantID)
	m.tombstones[participantID] = m.now()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep expires sessions idle for longer than the TTL. Abandoned sessions need no
// other cleanup. Tombstones are kept for the life of the process.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	expired := 0
	for pid, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, pid)
			expired++
		}
	}
	return expired
}

// Run sweeps on every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}
