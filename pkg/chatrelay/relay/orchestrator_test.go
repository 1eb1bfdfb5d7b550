package relay

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// fakeCompleter is a scripted Completer for orchestrator tests.
type fakeCompleter struct {
	reply   string
	err     error
	history []Turn
}

func (f *fakeCompleter) Complete(_ context.Context, history []Turn) (string, error) {
	f.history = history
	return f.reply, f.err
}

func TestOrchestrator_RespondSuccess(t *testing.T) {
	store := NewConversationStore(0)
	store.Append("alice", RoleUser, "hello")

	completer := &fakeCompleter{reply: "hi alice"}
	o := NewOrchestrator(store, completer, NewFallbackPool(nil), slog.Default())

	got := o.Respond(context.Background(), "alice")
	if got != "hi alice" {
		t.Errorf("Respond() = %q, want %q", got, "hi alice")
	}
	if len(completer.history) != 1 || completer.history[0].Content != "hello" {
		t.Errorf("completer did not receive the stored history: %+v", completer.history)
	}
}

func TestOrchestrator_RespondFailureUsesFallback(t *testing.T) {
	store := NewConversationStore(0)
	store.Append("alice", RoleUser, "hello")

	completer := &fakeCompleter{err: errors.New("boom")}
	fallbacks := NewFallbackPool([]string{"sorry, glitch"})
	o := NewOrchestrator(store, completer, fallbacks, slog.Default())

	got := o.Respond(context.Background(), "alice")
	if got != "sorry, glitch" {
		t.Errorf("Respond() = %q, want the fallback", got)
	}
}

func TestOrchestrator_RespondEmptyHistory(t *testing.T) {
	store := NewConversationStore(0)
	completer := &fakeCompleter{reply: "ok"}
	o := NewOrchestrator(store, completer, NewFallbackPool(nil), slog.Default())

	got := o.Respond(context.Background(), "nobody")
	if got != "ok" {
		t.Errorf("Respond() = %q, want %q", got, "ok")
	}
	if len(completer.history) != 0 {
		t.Errorf("expected empty history, got %+v", completer.history)
	}
}

// slowCompleter blocks until its context is cancelled.
type slowCompleter struct{}

func (slowCompleter) Complete(ctx context.Context, _ []Turn) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOrchestrator_RespondHonorsContextCancel(t *testing.T) {
	store := NewConversationStore(0)
	fallbacks := NewFallbackPool([]string{"fallback"})
	o := NewOrchestrator(store, slowCompleter{}, fallbacks, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan string, 1)
	go func() { done <- o.Respond(ctx, "alice") }()

	select {
	case got := <-done:
		if got != "fallback" {
			t.Errorf("Respond() = %q, want the fallback", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Respond did not return after context cancellation")
	}
}
