package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/timpalpant/postflop"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is one game owned by the server. All access to the game goes
// through Do, which serializes callers.
type Session struct {
	ID      uuid.UUID
	Created time.Time

	mu   sync.Mutex
	game *postflop.Game
}

// Do calls fn with exclusive access to the session's game.
func (s *Session) Do(fn func(g *postflop.Game) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.game)
}

// TryDo calls fn only if no other caller holds the session, and reports
// whether it ran.
func (s *Session) TryDo(fn func(g *postflop.Game) error) (bool, error) {
	if !s.mu.TryLock() {
		return false, nil
	}
	defer s.mu.Unlock()
	return true, fn(s.game)
}

// Manager tracks live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Add registers g under a new session id.
func (m *Manager) Add(g *postflop.Game) *Session {
	s := &Session{ID: uuid.New(), Created: time.Now(), game: g}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(ErrSessionNotFound, "%q", id)
	}

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "%q", id)
	}
	return s, nil
}

func (m *Manager) Delete(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
	return nil
}

// List returns the sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Created.Before(result[j].Created)
	})
	return result
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
