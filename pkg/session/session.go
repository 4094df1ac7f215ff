// Package session holds per-conversation chat state: the ordered message
// history, the prompt rendering derived from it, and the user-tweakable
// toggles that ride along with a conversation.
package session

import (
	"strings"
	"sync"
	"time"
)

// Message roles. The renderer writes them verbatim into the prompt.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnMeta carries the measured timings of one assistant turn.
type TurnMeta struct {
	LatencySeconds   float64  `json:"latency_seconds"`             // Wall-clock round trip
	InferenceSeconds *float64 `json:"inference_seconds,omitempty"` // Server-reported generation time, nil when unknown
	NetworkSeconds   *float64 `json:"network_seconds,omitempty"`   // Round trip minus inference, floored at zero
	PromptTokens     int      `json:"prompt_tokens,omitempty"`     // Token count of the rendered prompt
	CacheHit         bool     `json:"cache_hit,omitempty"`         // Whether the turn came from the memo cache
}

// ChatMessage is a single turn in the conversation.
type ChatMessage struct {
	Role    string    `json:"role"`           // "user" or "assistant"
	Content string    `json:"content"`        // The message text
	Meta    *TurnMeta `json:"meta,omitempty"` // Timings, assistant turns only
}

// Settings are the per-conversation toggles.
type Settings struct {
	AnalyticsEnabled bool `json:"analytics_enabled"` // Measure timings and keep per-turn stats
	RunLogEnabled    bool `json:"runlog_enabled"`    // Ship each turn to the external run logger
}

// Session is one conversation. Safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	messages []ChatMessage
	settings Settings
}

// New builds an empty session.
func New(id string, settings Settings) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now(),
		settings:  settings,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was built.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Append adds one message to the history and returns it.
func (s *Session) Append(role, content string, meta *TurnMeta) ChatMessage {
	msg := ChatMessage{Role: role, Content: content, Meta: meta}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

// Messages returns a copy of the history in arrival order.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports how many messages the session holds.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// RenderContext flattens the history into the prompt sent to the model:
// one "role: content" line per message, newline-joined. Local generate
// endpoints take a plain prompt string, so role-prefixed concatenation is
// how the model sees its context.
func (s *Session) RenderContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]string, len(s.messages))
	for i, m := range s.messages {
		lines[i] = m.Role + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Settings returns the current toggles.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the toggles.
func (s *Session) SetSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Clear drops the history but keeps identity and settings.
func (s *Session) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
