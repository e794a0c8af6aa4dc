package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultMistralBaseURL = "https://api.mistral.ai/v1"

// MistralProvider talks to the Mistral chat-completion API. Same
// request/response shape and Bearer auth header as OpenAI's, different
// host (kept separate since Mistral's response envelope differs slightly
// in practice and may diverge further).
type MistralProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type MistralOption func(*MistralProvider)

func WithMistralBaseURL(url string) MistralOption {
	return func(p *MistralProvider) { p.baseURL = url }
}

func NewMistralProvider(apiKey string, opts ...MistralOption) *MistralProvider {
	p := &MistralProvider{apiKey: apiKey, baseURL: defaultMistralBaseURL, client: &http.Client{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MistralProvider) Tag() string { return "mistral" }

func (p *MistralProvider) Generate(ctx context.Context, system, user, model string, maxTokens int, temperature float64) (string, int, error) {
	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("mistral API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", 0, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", 0, fmt.Errorf("mistral response has no choices")
	}

	return apiResp.Choices[0].Message.Content, apiResp.Usage.TotalTokens, nil
}

type mistralResponse struct {
	Choices []mistralChoice `json:"choices"`
	Usage   mistralUsage    `json:"usage"`
}
type mistralChoice struct {
	Message mistralMessage `json:"message"`
}
type mistralMessage struct {
	Content string `json:"content"`
}
type mistralUsage struct {
	TotalTokens int `json:"total_tokens"`
}
