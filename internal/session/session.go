// Package session scopes per-client state: the loaded dataset, its schema
// profile, and the conversation history. State is keyed by session ID so
// concurrent clients never see each other's uploads.
package session

import (
	"sync"

	"github.com/tablechat-io/tablechat/internal/dataset"
	"github.com/tablechat-io/tablechat/internal/schema"
)

// Turn is one conversation entry. Assistant content is the accepted
// expression text, not the rendered answer.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxTurns bounds the history log. Turns beyond the translator window are
// kept until capacity forces the oldest out; they leave translator context
// long before that.
const maxTurns = 50

// History is a fixed-capacity ordered log of turns with an explicit
// windowing accessor. Not safe for concurrent use on its own; Session
// methods take the lock.
type History struct {
	turns []Turn
}

// Append adds a turn, evicting the oldest when the log is full.
func (h *History) Append(role, content string) {
	h.turns = append(h.turns, Turn{Role: role, Content: content})
	if len(h.turns) > maxTurns {
		h.turns = h.turns[len(h.turns)-maxTurns:]
	}
}

// Window returns the most recent n turns, oldest first.
func (h *History) Window(n int) []Turn {
	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

// Len returns the total number of turns logged.
func (h *History) Len() int { return len(h.turns) }

// Session is one client's state. All access goes through methods holding
// the session lock, so concurrent requests for the same session serialize.
type Session struct {
	ID string

	mu      sync.Mutex
	ds      *dataset.Dataset
	profile *schema.Profile
	history History
}

// SetDataset installs a freshly loaded dataset and profile, replacing any
// previous upload and clearing conversation history.
func (s *Session) SetDataset(ds *dataset.Dataset, p *schema.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
	s.profile = p
	s.history.turns = nil
}

// Dataset returns the session's dataset and profile, or nil before any
// upload.
func (s *Session) Dataset() (*dataset.Dataset, *schema.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds, s.profile
}

// HistoryWindow returns the most recent n turns for translator context.
func (s *Session) HistoryWindow(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Window(n)
}

// RecordExchange appends the question and its accepted expression after a
// successful attempt.
func (s *Session) RecordExchange(question, expression string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Append(RoleUser, question)
	s.history.Append(RoleAssistant, expression)
}

// Reset clears everything: dataset, profile, and history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = nil
	s.profile = nil
	s.history.turns = nil
}

// HistoryLen reports how many turns are logged.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Len()
}
