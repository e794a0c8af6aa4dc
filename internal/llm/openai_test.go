package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		var reqBody map[string]any
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["model"] != "gpt-4o-mini" {
			t.Errorf("unexpected model: %v", reqBody["model"])
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Mega cool Text! 🙂"}},
			},
			"usage": map[string]any{"total_tokens": 42},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", WithOpenAIBaseURL(server.URL))
	text, tokens, err := p.Generate(context.Background(), "system prompt", "user prompt", "gpt-4o-mini", 300, 0.7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Mega cool Text! 🙂" {
		t.Errorf("text = %q", text)
	}
	if tokens != 42 {
		t.Errorf("tokens = %d, want 42", tokens)
	}
}

func TestOpenAIProvider_Generate_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid key"}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("bad-key", WithOpenAIBaseURL(server.URL))
	_, _, err := p.Generate(context.Background(), "sys", "user", "gpt-4o-mini", 300, 0.7)
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestOpenAIProvider_Tag(t *testing.T) {
	p := NewOpenAIProvider("k")
	if p.Tag() != "openai" {
		t.Errorf("Tag() = %q, want openai", p.Tag())
	}
}
