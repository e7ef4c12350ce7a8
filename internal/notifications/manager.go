package notifications

import (
	"context"
	"sync"
)

// Manager tracks the open aggregators of every user so that signing out can
// tear all of them down at once.
type Manager struct {
	source Source
	opts   Options

	mu     sync.Mutex
	active map[string]map[*Aggregator]struct{}
}

// NewManager creates a Manager whose aggregators read from source
func NewManager(source Source, opts Options) *Manager {
	return &Manager{
		source: source,
		opts:   opts.withDefaults(),
		active: make(map[string]map[*Aggregator]struct{}),
	}
}

// Open creates an aggregator for session, registers it and activates it.
// The aggregator is returned even when activation fails so the caller can
// retry; it must be released with Release.
func (m *Manager) Open(ctx context.Context, session Session) (*Aggregator, error) {
	a := New(m.source, session, m.opts)

	if session.Present() {
		m.mu.Lock()
		set, ok := m.active[session.UserID]
		if !ok {
			set = make(map[*Aggregator]struct{})
			m.active[session.UserID] = set
		}
		set[a] = struct{}{}
		m.mu.Unlock()
	}

	return a, a.Activate(ctx)
}

// Release closes a and forgets it
func (m *Manager) Release(a *Aggregator) {
	m.forget(a)
	a.Close()
}

// SignOut closes every aggregator of userID and returns how many there were
func (m *Manager) SignOut(userID string) int {
	m.mu.Lock()
	set := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	for a := range set {
		a.Close()
	}
	if len(set) > 0 {
		m.opts.Logger.Infow("signed out, notifications closed", "user_id", userID, "aggregators", len(set))
	}
	return len(set)
}

// Active reports how many aggregators userID has open
func (m *Manager) Active(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active[userID])
}

// Shutdown closes every aggregator
func (m *Manager) Shutdown() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[*Aggregator]struct{})
	m.mu.Unlock()

	for _, set := range active {
		for a := range set {
			a.Close()
		}
	}
}

func (m *Manager) forget(a *Aggregator) {
	uid := a.Session().UserID
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.active[uid]
	if !ok {
		return
	}
	delete(set, a)
	if len(set) == 0 {
		delete(m.active, uid)
	}
}
