// Package chat orchestrates one conversation turn end to end: append the
// user message, render the prompt, call the model, estimate timings,
// record analytics, append the assistant reply, and optionally ship the
// run to the external logger. The web UI and the terminal UI both drive
// their turns through the same Runner.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remacdev/chatbot/pkg/analytics"
	"github.com/remacdev/chatbot/pkg/session"
)

// idleTTL is how long an untouched conversation survives in the manager.
// It matches the analytics horizon: once everything a conversation
// measured has aged out, the conversation itself can go too.
const idleTTL = 6 * time.Hour

// Context bundles the state one conversation owns: its message history
// and its analytics ring. Nothing in it is shared across conversations.
type Context struct {
	Session   *session.Session
	Analytics *analytics.Ring

	// turnMu serializes whole turns so concurrent submissions to one
	// conversation cannot interleave their history entries.
	turnMu sync.Mutex
}

// NewContext builds a fresh conversation with the given toggles.
func NewContext(id string, settings session.Settings) *Context {
	return &Context{
		Session:   session.New(id, settings),
		Analytics: analytics.NewRing(),
	}
}

type managed struct {
	ctx      *Context
	lastSeen time.Time
}

// Manager hands out conversations by id for the web UI, evicting ones
// nobody touched within the idle TTL. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*managed
	defaults session.Settings
	now      func() time.Time
}

// NewManager builds an empty Manager whose new conversations start with
// the given default toggles.
func NewManager(defaults session.Settings) *Manager {
	return &Manager{
		sessions: make(map[string]*managed),
		defaults: defaults,
		now:      time.Now,
	}
}

// Create registers a new conversation under a fresh uuid, evicting stale
// conversations on the way.
func (m *Manager) Create() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	id := uuid.New().String()
	ctx := NewContext(id, m.defaults)
	m.sessions[id] = &managed{ctx: ctx, lastSeen: m.now()}
	return ctx
}

// Get returns the conversation for id and marks it live. Conversations
// past the idle TTL are gone even if no Create ran in the meantime.
func (m *Manager) Get(id string) (*Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.now().Sub(entry.lastSeen) > idleTTL {
		delete(m.sessions, id)
		return nil, false
	}
	entry.lastSeen = m.now()
	return entry.ctx, true
}

// Remove drops a conversation.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports how many conversations are registered.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) evictLocked() {
	cutoff := m.now().Add(-idleTTL)
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
