package relay

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

func TestIsCommand(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"/reset", true},
		{"  /reset", true},
		{"/help extra args", true},
		{"reset", false},
		{"hello /reset", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCommand(tt.content); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func commandMsg(from, content string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		Channel: "fake", From: from, ChatID: "c1",
		Type: channels.MessageText, Content: content,
	}
}

func TestHandleCommand_Reset(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())
	a.store.Append("alice", RoleUser, "something")

	result := a.HandleCommand(commandMsg("alice", "/reset"))

	if !result.Handled {
		t.Fatal("expected /reset to be handled")
	}
	if result.Response != resetConfirmation {
		t.Errorf("response = %q, want %q", result.Response, resetConfirmation)
	}
	if a.store.Len("alice") != 0 {
		t.Error("history should be empty after /reset")
	}
}

func TestHandleCommand_ResetWithBotSuffix(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())
	a.store.Append("alice", RoleUser, "something")

	result := a.HandleCommand(commandMsg("alice", "/reset@relaybot"))

	if !result.Handled || result.Response != resetConfirmation {
		t.Errorf("suffixed command not handled: %+v", result)
	}
}

func TestHandleCommand_ResetOnlyAffectsSender(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())
	a.store.Append("alice", RoleUser, "alice's")
	a.store.Append("bob", RoleUser, "bob's")

	a.HandleCommand(commandMsg("alice", "/reset"))

	if a.store.Len("bob") != 1 {
		t.Error("/reset must only clear the sender's history")
	}
}

func TestHandleCommand_Help(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())

	result := a.HandleCommand(commandMsg("alice", "/help"))
	if !result.Handled {
		t.Fatal("expected /help to be handled")
	}
	if !strings.Contains(result.Response, "/reset") {
		t.Error("help output should list /reset")
	}
}

func TestHandleCommand_UnknownIsSilent(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())

	result := a.HandleCommand(commandMsg("alice", "/frobnicate"))
	if !result.Handled {
		t.Error("unknown commands are consumed, not relayed")
	}
	if result.Response != "" {
		t.Errorf("unknown command should have no response, got %q", result.Response)
	}
}

func TestHandleCommand_NonCommandPassesThrough(t *testing.T) {
	a := New(DefaultConfig(), slog.Default())

	result := a.HandleCommand(commandMsg("alice", "just chatting"))
	if result.Handled {
		t.Error("plain text must not be treated as a command")
	}
}
