package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/csbot/core/logger"
)

type csChat struct {
	startedAt time.Time
	timer     Timer
	gen       uint64
}

type userSession struct {
	state State
	cs    *csChat
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*userSession
	lastGen  uint64
	newTimer NewTimerFunc
	now      func() time.Time
}

// NewMemoryStore constructs the in-memory Store used in production.
// Sessions live for the process lifetime and are never persisted.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[string]*userSession),
		newTimer: func(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) },
		now:      time.Now,
	}
}

func (m *memoryStore) session(userID string) *userSession {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &userSession{state: StateMainMenu}
		m.sessions[userID] = sess
	}
	return sess
}

// GetState returns the state for a user, StateMainMenu if none exists.
func (m *memoryStore) GetState(userID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.state
	}
	return StateMainMenu
}

// SetState updates the state for a user, creating a session if necessary.
func (m *memoryStore) SetState(userID string, st State) {
	m.mu.Lock()
	sess := m.session(userID)
	old := sess.state
	sess.state = st
	m.mu.Unlock()

	logger.StateChange(logger.Background(), userID, string(old), string(st))
}

// ArmTimeout schedules onFire and tracks the handle. A live timer for the
// same user is stopped and replaced.
func (m *memoryStore) ArmTimeout(userID string, d time.Duration, onFire func()) Timer {
	m.mu.Lock()
	sess := m.session(userID)
	if sess.cs != nil {
		if sess.cs.timer != nil {
			sess.cs.timer.Stop()
		}
		logger.Warn(logger.Background(), "support.session", "timeout.replaced",
			slog.String("user_id", userID),
		)
	}
	m.lastGen++
	gen := m.lastGen
	chat := &csChat{startedAt: m.now(), gen: gen}
	sess.cs = chat
	chat.timer = m.newTimer(d, func() {
		m.fire(userID, gen, onFire)
	})
	m.mu.Unlock()
	return chat.timer
}

// fire clears the chat record and runs the callback, but only when the
// firing timer is still the armed one. A disarm or replacement that raced
// with the firing goroutine wins.
func (m *memoryStore) fire(userID string, gen uint64, onFire func()) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	if !ok || sess.cs == nil || sess.cs.gen != gen {
		m.mu.Unlock()
		return
	}
	sess.cs = nil
	m.mu.Unlock()

	if onFire != nil {
		onFire()
	}
}

// DisarmTimeout stops the pending timer and clears the chat record.
func (m *memoryStore) DisarmTimeout(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok || sess.cs == nil {
		return false
	}
	if sess.cs.timer != nil {
		sess.cs.timer.Stop()
	}
	sess.cs = nil
	return true
}

// ChatStartedAt reports when the armed handoff was requested.
func (m *memoryStore) ChatStartedAt(userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok || sess.cs == nil {
		return time.Time{}, false
	}
	return sess.cs.startedAt, true
}
