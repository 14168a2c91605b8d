package score

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

// PerspectiveScorer calls the Perspective comment-analyzer API. Labels keep
// the API's uppercase attribute names under the "perspective_" prefix
// (perspective_THREAT).
type PerspectiveScorer struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

// NewPerspectiveScorer creates the Perspective API scorer.
func NewPerspectiveScorer(cfg config.PerspectiveConfig) *PerspectiveScorer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PerspectiveScorer{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  httpclient.New(timeout),
	}
}

// Descriptor implements Scorer.
func (s *PerspectiveScorer) Descriptor() Descriptor {
	d := Descriptor{
		Name:   "perspective",
		Prefix: "perspective_",
		Labels: []string{"TOXICITY", "SEVERE_TOXICITY", "INSULT", "THREAT", "IDENTITY_ATTACK", "PROFANITY"},
		Thresholds: map[string]float64{
			"TOXICITY":        0.92,
			"SEVERE_TOXICITY": 0.70,
			"INSULT":          0.90,
			"THREAT":          0.80,
			"IDENTITY_ATTACK": 0.80,
			"PROFANITY":       0.97,
		},
	}
	validateDescriptor(d)
	return d
}

// Available implements Scorer.
func (s *PerspectiveScorer) Available() bool {
	return s.apiKey != ""
}

type perspectiveRequest struct {
	Comment struct {
		Text string `json:"text"`
	} `json:"comment"`
	RequestedAttributes map[string]struct{} `json:"requestedAttributes"`
	DoNotStore          bool                `json:"doNotStore"`
}

type perspectiveResponse struct {
	AttributeScores map[string]struct {
		SummaryScore struct {
			Value float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

// Score implements Scorer.
func (s *PerspectiveScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	reqPayload := perspectiveRequest{DoNotStore: true}
	reqPayload.Comment.Text = text
	reqPayload.RequestedAttributes = make(map[string]struct{})
	for _, label := range s.Descriptor().Labels {
		reqPayload.RequestedAttributes[label] = struct{}{}
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal perspective request")
	}

	endpoint := s.baseURL + "/comments:analyze?key=" + url.QueryEscape(s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create perspective request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "perspective request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read perspective response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("perspective returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed perspectiveResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, "malformed perspective response")
	}

	out := make(map[string]float64, len(parsed.AttributeScores))
	for attr, sc := range parsed.AttributeScores {
		out[attr] = sc.SummaryScore.Value
	}
	return out, nil
}
