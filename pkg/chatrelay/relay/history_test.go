package relay

import (
	"strings"
	"sync"
	"testing"
)

func totalChars(history []Turn) int {
	total := 0
	for _, t := range history {
		total += len(t.Content)
	}
	return total
}

func TestConversationStore_AppendPreservesOrder(t *testing.T) {
	s := NewConversationStore(0)

	s.Append("alice", RoleUser, "first")
	s.Append("alice", RoleAssistant, "second")
	s.Append("alice", RoleUser, "third")

	history := s.History("alice")
	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	if history[0].Content != "first" || history[2].Content != "third" {
		t.Errorf("turns out of order: %+v", history)
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("roles not preserved: %+v", history)
	}
}

func TestConversationStore_EvictsOldestFirst(t *testing.T) {
	s := NewConversationStore(10)

	s.Append("alice", RoleUser, "aaaa")      // total 4
	s.Append("alice", RoleAssistant, "bbbb") // total 8
	s.Append("alice", RoleUser, "cccc")      // total 12 → evict "aaaa"

	history := s.History("alice")
	if len(history) != 2 {
		t.Fatalf("expected 2 turns after eviction, got %d", len(history))
	}
	if history[0].Content != "bbbb" {
		t.Errorf("expected oldest turn evicted, head is %q", history[0].Content)
	}
	if totalChars(history) > 10 {
		t.Errorf("budget exceeded: %d chars", totalChars(history))
	}
}

func TestConversationStore_EvictionIsRoleBlind(t *testing.T) {
	s := NewConversationStore(10)

	s.Append("alice", RoleAssistant, "aaaaaaaa") // 8 chars
	s.Append("alice", RoleUser, "bbbbbb")        // 6 chars → evicts the assistant turn

	history := s.History("alice")
	if len(history) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(history))
	}
	if history[0].Role != RoleUser {
		t.Errorf("expected assistant turn evicted regardless of role")
	}
}

func TestConversationStore_OversizedMessageEvictsItself(t *testing.T) {
	s := NewConversationStore(10)

	s.Append("alice", RoleUser, "hi")
	history := s.Append("alice", RoleUser, strings.Repeat("x", 11))

	if len(history) != 0 {
		t.Fatalf("expected empty history after oversized append, got %d turns", len(history))
	}
	if !s.Known("alice") {
		t.Error("identity should remain known after self-eviction")
	}
}

func TestConversationStore_DefaultBudget(t *testing.T) {
	s := NewConversationStore(0)

	// 5 messages of 1000 chars exceed 4096; the first must go.
	for i := 0; i < 5; i++ {
		s.Append("alice", RoleUser, strings.Repeat("x", 1000))
	}

	history := s.History("alice")
	if len(history) != 4 {
		t.Fatalf("expected 4 turns within default budget, got %d", len(history))
	}
	if totalChars(history) > DefaultHistoryBudget {
		t.Errorf("budget exceeded: %d", totalChars(history))
	}
}

func TestConversationStore_ClearKeepsIdentityKnown(t *testing.T) {
	s := NewConversationStore(0)

	s.Append("alice", RoleUser, "hello")
	s.Clear("alice")

	if got := s.Len("alice"); got != 0 {
		t.Fatalf("expected empty history after clear, got %d turns", got)
	}
	if !s.Known("alice") {
		t.Error("clear should keep the identity entry")
	}

	// Clearing an unknown identity must not create an entry.
	s.Clear("ghost")
	if s.Known("ghost") {
		t.Error("clear must not create entries for unknown identities")
	}
}

func TestConversationStore_IdentitiesAreIsolated(t *testing.T) {
	s := NewConversationStore(0)

	s.Append("alice", RoleUser, "alice's message")
	s.Append("bob", RoleUser, "bob's message")
	s.Clear("alice")

	if s.Len("bob") != 1 {
		t.Error("clearing alice must not touch bob's history")
	}
	if s.Len("alice") != 0 {
		t.Error("alice's history should be empty")
	}
}

func TestConversationStore_SnapshotIsDetached(t *testing.T) {
	s := NewConversationStore(0)

	s.Append("alice", RoleUser, "original")
	history := s.History("alice")
	history[0].Content = "mutated"

	if s.History("alice")[0].Content != "original" {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestConversationStore_ConcurrentAppendsHoldBudget(t *testing.T) {
	s := NewConversationStore(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append("alice", RoleUser, strings.Repeat("x", 30))
		}()
	}
	wg.Wait()

	if got := totalChars(s.History("alice")); got > 100 {
		t.Errorf("budget exceeded under concurrency: %d chars", got)
	}
}
