package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/channels"
)

func testChannel(t *testing.T) *Telegram {
	t.Helper()
	return New(Config{Token: "test-token"}, slog.Default())
}

func TestToIncoming_Text(t *testing.T) {
	tg := testChannel(t)

	msg := &tgMessage{
		MessageID: 42,
		From:      &tgUser{ID: 7, Username: "alice"},
		Chat:      tgChat{ID: 100, Type: "private"},
		Date:      1700000000,
		Text:      "hello",
	}

	got := tg.toIncoming(msg)
	if got == nil {
		t.Fatal("expected a message")
	}
	if got.ID != "42" || got.From != "alice" || got.ChatID != "100" {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.IsGroup {
		t.Error("private chat mapped as group")
	}
	if got.Type != channels.MessageText || got.Content != "hello" {
		t.Errorf("content wrong: %+v", got)
	}
}

func TestToIncoming_GroupTypes(t *testing.T) {
	tg := testChannel(t)

	for _, chatType := range []string{"group", "supergroup"} {
		msg := &tgMessage{
			MessageID: 1, From: &tgUser{Username: "alice"},
			Chat: tgChat{ID: 1, Type: chatType}, Text: "x",
		}
		if got := tg.toIncoming(msg); !got.IsGroup {
			t.Errorf("chat type %q should map to a group", chatType)
		}
	}
}

func TestToIncoming_Reply(t *testing.T) {
	tg := testChannel(t)

	msg := &tgMessage{
		MessageID: 43,
		From:      &tgUser{Username: "alice"},
		Chat:      tgChat{ID: 100, Type: "supergroup"},
		Text:      "and then?",
		ReplyToMessage: &tgMessage{
			MessageID: 40,
			From:      &tgUser{Username: "relaybot", IsBot: true},
			Text:      "previous answer",
		},
	}

	got := tg.toIncoming(msg)
	if got.ReplyTo != "40" {
		t.Errorf("ReplyTo = %q, want 40", got.ReplyTo)
	}
	if got.ReplyToAuthor != "relaybot" {
		t.Errorf("ReplyToAuthor = %q, want relaybot", got.ReplyToAuthor)
	}
	if got.QuotedContent != "previous answer" {
		t.Errorf("QuotedContent = %q", got.QuotedContent)
	}
}

func TestToIncoming_Voice(t *testing.T) {
	tg := testChannel(t)

	msg := &tgMessage{
		MessageID: 44,
		From:      &tgUser{Username: "alice"},
		Chat:      tgChat{ID: 100, Type: "private"},
		Voice: &tgVoice{
			FileID: "file-abc", Duration: 3,
			MimeType: "audio/ogg", FileSize: 2048,
		},
	}

	got := tg.toIncoming(msg)
	if got.Type != channels.MessageVoice {
		t.Fatalf("type = %q, want voice", got.Type)
	}
	if got.Voice == nil || got.Voice.FileRef != "file-abc" || got.Voice.MimeType != "audio/ogg" {
		t.Errorf("voice info wrong: %+v", got.Voice)
	}
}

func TestToIncoming_EmptyDropped(t *testing.T) {
	tg := testChannel(t)

	msg := &tgMessage{
		MessageID: 45,
		From:      &tgUser{Username: "alice"},
		Chat:      tgChat{ID: 100, Type: "private"},
	}
	if got := tg.toIncoming(msg); got != nil {
		t.Errorf("sticker/photo-only message should be dropped, got %+v", got)
	}
}

func TestSenderHandle(t *testing.T) {
	tests := []struct {
		name string
		user *tgUser
		want string
	}{
		{"username preferred", &tgUser{ID: 1, Username: "alice", FirstName: "Alice"}, "alice"},
		{"display name fallback", &tgUser{ID: 1, FirstName: "Alice", LastName: "B"}, "Alice B"},
		{"first name only", &tgUser{ID: 1, FirstName: "Alice"}, "Alice"},
		{"numeric ID last resort", &tgUser{ID: 12345}, "12345"},
		{"nil user", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := senderHandle(tt.user); got != tt.want {
				t.Errorf("senderHandle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSend_HonorsCallerContext(t *testing.T) {
	// A server that never answers within the test deadline: only a caller
	// context with a short deadline can unblock the request.
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	tg := testChannel(t)
	tg.baseURL = server.URL
	tg.connected.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tg.Send(ctx, "100", &channels.OutgoingMessage{Content: "hi"})
	if err == nil {
		t.Fatal("expected an error from the expired context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("send ignored caller context, took %v", elapsed)
	}
}
