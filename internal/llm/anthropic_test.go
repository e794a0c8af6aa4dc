package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected api key header: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("unexpected version header: %s", r.Header.Get("anthropic-version"))
		}
		var reqBody map[string]any
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody["system"] != "system prompt" {
			t.Errorf("unexpected system: %v", reqBody["system"])
		}
		resp := map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Sali! Das isch e tolle Gschicht."},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 12},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	text, tokens, err := p.Generate(context.Background(), "system prompt", "user prompt", "claude-3-5-haiku-latest", 300, 0.7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Sali! Das isch e tolle Gschicht." {
		t.Errorf("text = %q", text)
	}
	if tokens != 22 {
		t.Errorf("tokens = %d, want 22", tokens)
	}
}

func TestAnthropicProvider_Generate_NoTextContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	_, _, err := p.Generate(context.Background(), "sys", "user", "claude-3-5-haiku-latest", 300, 0.7)
	if err == nil {
		t.Fatal("expected error when response has no text content")
	}
}

func TestAnthropicProvider_Tag(t *testing.T) {
	p := NewAnthropicProvider("k")
	if p.Tag() != "anthropic" {
		t.Errorf("Tag() = %q, want anthropic", p.Tag())
	}
}
