package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Turn is one message in a session's history.
type Turn struct {
	Role    string    `json:"role"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session holds per-conversation state. Concurrent messages within one
// session are serialized through mu so history mutations never interleave;
// sessions never share mutable state with each other.
type Session struct {
	ID string

	// lastActive is unix nanos, read by the manager's reaper without
	// taking mu so an in-flight turn never blocks session resolution for
	// other requests.
	lastActive atomic.Int64

	mu         sync.Mutex
	createdAt  time.Time
	history    []Turn
	customerID int
	state      State
}

// lock serializes message handling for this session.
func (s *Session) lock() { s.mu.Lock() }

func (s *Session) unlock() { s.mu.Unlock() }

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

// appendTurns records an exchange, trimming history to the bound.
// Caller must hold the session lock.
func (s *Session) appendTurns(maxHistory int, turns ...Turn) {
	s.history = append(s.history, turns...)
	if maxHistory > 0 && len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.touch()
}

// History returns a copy of the session's turn history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// SessionManager owns the session table. Expired sessions are reaped
// lazily on access.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	expiry   time.Duration
}

// NewSessionManager creates a session manager with the given idle expiry.
func NewSessionManager(expiry time.Duration) *SessionManager {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		expiry:   expiry,
	}
}

// Get returns the session for token, creating a fresh one with a generated
// identifier when the token is absent, unknown or expired. The second
// return reports whether a new session was created.
func (m *SessionManager) Get(token string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reapLocked()

	if token != "" {
		if s, ok := m.sessions[token]; ok {
			s.touch()
			return s, false
		}
	}

	s := &Session{
		ID:        uuid.New().String(),
		createdAt: time.Now(),
		state:     StateAwaitingInput,
	}
	s.touch()
	m.sessions[s.ID] = s
	return s, true
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// End removes a session.
func (m *SessionManager) End(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *SessionManager) reapLocked() {
	cutoff := time.Now().Add(-m.expiry).UnixNano()
	for id, s := range m.sessions {
		if s.lastActive.Load() < cutoff {
			delete(m.sessions, id)
		}
	}
}
