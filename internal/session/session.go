// ABOUTME: Per-operator post composition state as a tagged variant
// ABOUTME: Absent -> AwaitingPhoto -> AwaitingCaption -> absent

package session

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoSession is returned when an input arrives in a state that does not expect it.
var ErrNoSession = errors.New("no active session")

// State is the operator's current composition state.
type State interface {
	isState()
}

// AwaitingPhoto waits for the post's photo.
type AwaitingPhoto struct{}

// AwaitingCaption holds the received photo and waits for the caption.
type AwaitingCaption struct {
	PhotoRef string
}

func (AwaitingPhoto) isState()   {}
func (AwaitingCaption) isState() {}

// Manager holds one session per operator.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]State
}

// NewManager creates a Manager with no sessions.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]State)}
}

// Begin starts a new session awaiting a photo, discarding any previous one.
func (m *Manager) Begin(operator int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[operator] = AwaitingPhoto{}
}

// OnPhoto records the photo and moves to AwaitingCaption.
// Returns ErrNoSession unless the session is awaiting a photo.
func (m *Manager) OnPhoto(operator int64, photoRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[operator].(AwaitingPhoto); !ok {
		return ErrNoSession
	}
	m.sessions[operator] = AwaitingCaption{PhotoRef: photoRef}
	return nil
}

// OnText consumes a session awaiting its caption and returns the photo and
// caption. Text that is empty after trimming yields a nil caption.
// Returns ErrNoSession unless the session is awaiting a caption.
func (m *Manager) OnText(operator int64, text string) (string, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[operator].(AwaitingCaption)
	if !ok {
		return "", nil, ErrNoSession
	}
	delete(m.sessions, operator)

	var caption *string
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		caption = &trimmed
	}
	return st.PhotoRef, caption, nil
}

// Clear drops the operator's session, if any.
func (m *Manager) Clear(operator int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, operator)
}

// Current returns the operator's state, or nil when there is no session.
func (m *Manager) Current(operator int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[operator]
}
