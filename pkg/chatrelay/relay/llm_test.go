package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLLMClient(t *testing.T, baseURL string) *LLMClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.APIKey = "test-key"
	cfg.Model = "gpt-4"
	return NewLLMClient(cfg, slog.Default())
}

func TestLLMClient_Complete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "  hello back  "}},
			},
		})
	}))
	defer server.Close()

	client := testLLMClient(t, server.URL)

	history := []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "yes?"},
		{Role: RoleUser, Content: "hello"},
	}

	got, err := client.Complete(context.Background(), history)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "hello back" {
		t.Errorf("expected trimmed content, got %q", got)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("wrong auth header: %q", gotAuth)
	}
	if gotReq.N != 1 {
		t.Errorf("expected n=1, got %d", gotReq.N)
	}
	if gotReq.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 3 || gotReq.Messages[0].Content != "hi" {
		t.Errorf("history not forwarded in order: %+v", gotReq.Messages)
	}
}

func TestLLMClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
		},
		{
			name: "error object in body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"message": "model overloaded", "type": "server_error"},
				})
			},
		},
		{
			name: "zero choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("{not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := testLLMClient(t, server.URL)
			if _, err := client.Complete(context.Background(), []Turn{{Role: RoleUser, Content: "hi"}}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLLMClient_MissingKey(t *testing.T) {
	cfg := DefaultConfig()
	client := NewLLMClient(cfg, slog.Default())

	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Error("expected error without an API key")
	}
}
