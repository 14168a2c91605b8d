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

// DetoxScorer calls a local detoxify-style inference server. It is the cheap
// always-on scorer; external scorers gate on its result in "confirm" mode.
type DetoxScorer struct {
	baseURL string
	variant string
	client  *httpclient.Client
	enabled bool
}

// NewDetoxScorer creates the local toxicity scorer.
func NewDetoxScorer(cfg config.DetoxConfig) *DetoxScorer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DetoxScorer{
		baseURL: cfg.BaseURL,
		variant: cfg.Variant,
		client:  httpclient.NewWithOptions(timeout, httpclient.Options{AllowLocal: true}),
		enabled: cfg.Enabled && cfg.BaseURL != "",
	}
}

// Descriptor implements Scorer. Local labels carry no prefix.
func (s *DetoxScorer) Descriptor() Descriptor {
	d := Descriptor{
		Name:   "detox",
		Prefix: "",
		Labels: []string{"toxicity", "severe_toxicity", "obscene", "insult", "identity_attack", "threat"},
		Thresholds: map[string]float64{
			"toxicity":        0.90,
			"severe_toxicity": 0.70,
			"obscene":         0.95,
			"insult":          0.90,
			"identity_attack": 0.80,
			"threat":          0.80,
		},
	}
	validateDescriptor(d)
	return d
}

// Available implements Scorer.
func (s *DetoxScorer) Available() bool {
	return s.enabled
}

type detoxRequest struct {
	Text    string `json:"text"`
	Variant string `json:"variant,omitempty"`
}

// Score implements Scorer.
func (s *DetoxScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(detoxRequest{Text: text, Variant: s.variant})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal detox request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create detox request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "detox request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read detox response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("detox server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw map[string]float64
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, errors.Wrap(err, "malformed detox response")
	}

	// Keep only declared labels; variants emit differing extras
	out := make(map[string]float64, len(raw))
	for _, label := range s.Descriptor().Labels {
		if v, ok := raw[label]; ok {
			out[label] = v
		}
	}
	return out, nil
}
