// Package relay – history.go implements the per-identity conversation store.
//
// Each identity owns an ordered log of turns bounded by a total content
// length budget. When an append would exceed the budget the oldest turns are
// evicted first, regardless of role — a single oversized message can evict
// itself.
package relay

import "sync"

// Role tags a turn as coming from the user or from the assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message unit in a conversation history.
// Immutable once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultHistoryBudget is the total content length allowed per identity.
const DefaultHistoryBudget = 4096

// ConversationStore maps identities to their bounded histories. All mutation
// goes through the store's lock, so concurrent handlers for the same
// identity serialize their appends and the length invariant holds at every
// observable point.
type ConversationStore struct {
	budget    int
	histories map[string][]Turn
	mu        sync.Mutex
}

// NewConversationStore creates a store with the given content-length budget.
// A non-positive budget falls back to DefaultHistoryBudget.
func NewConversationStore(budget int) *ConversationStore {
	if budget <= 0 {
		budget = DefaultHistoryBudget
	}
	return &ConversationStore{
		budget:    budget,
		histories: make(map[string][]Turn),
	}
}

// Append adds a turn to the identity's history, creating it if absent, then
// trims from the front until the total content length fits the budget.
// Always succeeds; returns a snapshot of the trimmed history.
func (s *ConversationStore) Append(identity string, role Role, content string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.histories[identity], Turn{Role: role, Content: content})

	total := 0
	for _, t := range history {
		total += len(t.Content)
	}
	for total > s.budget {
		total -= len(history[0].Content)
		history = history[1:]
	}

	s.histories[identity] = history
	return snapshot(history)
}

// History returns a snapshot of the identity's current history. The slice
// may be empty but is safe to read without holding the store's lock.
func (s *ConversationStore) History(identity string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.histories[identity])
}

// Clear empties the identity's history in place. The identity stays a known
// key; a later Append starts a fresh bounded history. No-op when absent.
func (s *ConversationStore) Clear(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[identity]; ok {
		s.histories[identity] = nil
	}
}

// Known reports whether the identity has ever had a history created.
func (s *ConversationStore) Known(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.histories[identity]
	return ok
}

// Count returns the number of identities with a history entry, including
// cleared ones.
func (s *ConversationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories)
}

// Len returns the number of turns currently held for the identity.
func (s *ConversationStore) Len(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories[identity])
}

func snapshot(history []Turn) []Turn {
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}
