package score

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

// OpenAIModScorer calls the OpenAI moderation endpoint. Labels are merged
// with the "openai_" prefix; slashes in category names become underscores
// (harassment/threatening -> harassment_threatening).
type OpenAIModScorer struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// NewOpenAIModScorer creates the OpenAI moderation scorer.
func NewOpenAIModScorer(cfg config.OpenAIModConfig) *OpenAIModScorer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIModScorer{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  httpclient.New(timeout),
	}
}

// Descriptor implements Scorer.
func (s *OpenAIModScorer) Descriptor() Descriptor {
	d := Descriptor{
		Name:   "openai",
		Prefix: "openai_",
		Labels: []string{
			"harassment", "harassment_threatening", "hate", "hate_threatening",
			"self_harm", "self_harm_instructions", "sexual", "violence",
		},
		Thresholds: map[string]float64{
			"harassment":             0.80,
			"harassment_threatening": 0.50,
			"hate":                   0.70,
			"hate_threatening":       0.40,
			"self_harm":              0.60,
			"self_harm_instructions": 0.40,
			"sexual":                 0.95,
			"violence":               0.85,
		},
	}
	validateDescriptor(d)
	return d
}

// Available implements Scorer.
func (s *OpenAIModScorer) Available() bool {
	return s.apiKey != ""
}

type openaiModRequest struct {
	Input string `json:"input"`
}

type openaiModResponse struct {
	Results []struct {
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

// Score implements Scorer.
func (s *OpenAIModScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(openaiModRequest{Input: text})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal moderation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/moderations", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create moderation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "moderation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read moderation response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("moderation endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed openaiModResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed moderation response")
	}
	if len(parsed.Results) == 0 {
		return nil, errors.New("moderation response contained no results")
	}

	declared := s.Descriptor().Labels
	out := make(map[string]float64, len(declared))
	for category, v := range parsed.Results[0].CategoryScores {
		label := normalizeCategory(category)
		for _, l := range declared {
			if l == label {
				out[label] = v
				break
			}
		}
	}
	return out, nil
}

// normalizeCategory maps API category names onto declared label names:
// "harassment/threatening" -> "harassment_threatening", "self-harm" ->
// "self_harm".
func normalizeCategory(category string) string {
	b := []byte(category)
	for i, c := range b {
		if c == '/' || c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}
