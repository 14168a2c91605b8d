package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/internal/httpclient"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend talks to the OpenRouter chat completions API.
type OpenRouterBackend struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// NewOpenRouterBackend creates the OpenRouter backend.
func NewOpenRouterBackend(cfg config.BackendConfig) *OpenRouterBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	return &OpenRouterBackend{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  httpclient.NewWithOptions(120*time.Second, httpclient.Options{AllowLocal: true}),
	}
}

// Name implements Backend.
func (b *OpenRouterBackend) Name() string { return "openrouter" }

// Available implements Backend.
func (b *OpenRouterBackend) Available() bool { return b.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements Backend.
func (b *OpenRouterBackend) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload := chatCompletionRequest{Model: model, Messages: messages}
	if req.Temperature != nil {
		payload.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		payload.MaxTokens = *req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("X-Title", "modsieve")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "chat request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chat response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitFromResponse(model, resp, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("openrouter returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed chat response")
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("chat response contained no choices")
	}

	return &Response{
		Content: parsed.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// rateLimitFromResponse builds a typed rate-limit error from a 429. The
// Retry-After header wins; the body's structured or textual hint is the
// fallback.
func rateLimitFromResponse(model string, resp *http.Response, body string) error {
	wait, ok := parseRetryAfterHeader(resp.Header.Get("Retry-After"))
	if !ok {
		wait, _ = parseRetryAfterBody(body)
	}
	return &errors.RateLimitError{
		Model:      model,
		RetryAfter: wait,
		Daily:      isDailyQuota(body),
	}
}
