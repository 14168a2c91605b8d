package arbiter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/internal/httpclient"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiBackend talks to the Gemini generateContent API.
type GeminiBackend struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// NewGeminiBackend creates the Gemini backend.
func NewGeminiBackend(cfg config.BackendConfig) *GeminiBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiBackend{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  httpclient.NewWithOptions(120*time.Second, httpclient.Options{AllowLocal: true}),
	}
}

// Name implements Backend.
func (b *GeminiBackend) Name() string { return "gemini" }

// Available implements Backend.
func (b *GeminiBackend) Available() bool { return b.apiKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete implements Backend.
func (b *GeminiBackend) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.User}}},
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		payload.GenerationConfig = &struct {
			Temperature     *float64 `json:"temperature,omitempty"`
			MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
		}{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal gemini request")
	}

	endpoint := b.baseURL + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(b.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "gemini request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read gemini response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitFromResponse(model, resp, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("gemini returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed gemini response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("gemini response contained no candidates")
	}

	var content string
	for _, p := range parsed.Candidates[0].Content.Parts {
		content += p.Text
	}

	return &Response{
		Content: content,
		Usage: Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
