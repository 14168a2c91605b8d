package prefilter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/pattern"
	"github.com/modsieve/modsieve/score"
)

func scoringCfg() config.ScoringConfig {
	return config.ScoringConfig{
		Threshold:           0.90,
		InsultDirected:      0.80,
		InsultUndirected:    0.95,
		ToxicityDirected:    0.85,
		ToxicityUndirected:  0.95,
		IdentityAttackFloor: 0.50,
		BorderlineNotice:    0.70,
		ConfMedium:          0.90,
		ConfHigh:            0.95,
		ConfVeryHigh:        0.99,
	}
}

// detoxStub serves a fixed detoxify-style score response.
func detoxStub(t *testing.T, scores map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(scores))
	}))
}

func newPrefilter(t *testing.T, cfg config.ScoringConfig) *Prefilter {
	t.Helper()
	return New(score.NewAggregator(cfg, nil), cfg, nil)
}

func TestEvaluatePatternEscalation(t *testing.T) {
	// no scorers configured at all; the pattern rule alone must escalate
	p := newPrefilter(t, scoringCfg())

	d := p.Evaluate(context.Background(), "just go kys already", false)
	assert.Equal(t, MustEscalate, d.Action)
	assert.Equal(t, pattern.RuleSelfHarm, d.Trigger)
	assert.Equal(t, 1.0, d.TopScore())
	assert.Equal(t, "VERY HIGH", d.Confidence)
	_, ok := d.Scores.Scores[pattern.RuleSelfHarm]
	assert.False(t, ok, "the rule name is not a numeric score")
}

func TestEvaluatePatternEscalationStillGathersScores(t *testing.T) {
	srv := detoxStub(t, map[string]float64{"toxicity": 0.62, "insult": 0.55})
	defer srv.Close()

	cfg := scoringCfg()
	cfg.Detox = config.DetoxConfig{Enabled: true, BaseURL: srv.URL}
	p := newPrefilter(t, cfg)

	d := p.Evaluate(context.Background(), "just go kys already", false)
	require.Equal(t, MustEscalate, d.Action)
	assert.Equal(t, pattern.RuleSelfHarm, d.Trigger)
	assert.InDelta(t, 0.62, d.Scores.Scores["toxicity"], 1e-9, "scorer output rides along for arbiter context")
	assert.Equal(t, 1.0, d.TopScore(), "the reported score is pinned regardless of the scorers")

	label, max := d.Scores.Max()
	assert.Equal(t, "toxicity", label)
	assert.InDelta(t, 0.62, max, 1e-9)
}

func TestEvaluateBenignSkip(t *testing.T) {
	p := newPrefilter(t, scoringCfg())

	d := p.Evaluate(context.Background(), "holy shit!", true)
	assert.Equal(t, Skip, d.Action)
	assert.Empty(t, d.Trigger)
	assert.Zero(t, d.TopScore())
}

func TestEvaluateScorerSend(t *testing.T) {
	srv := detoxStub(t, map[string]float64{"toxicity": 0.97, "insult": 0.40})
	defer srv.Close()

	cfg := scoringCfg()
	cfg.Detox = config.DetoxConfig{Enabled: true, BaseURL: srv.URL}
	p := newPrefilter(t, cfg)

	d := p.Evaluate(context.Background(), "some neutral-looking sentence", true)
	assert.Equal(t, Send, d.Action)
	assert.Contains(t, d.Fired, "toxicity")
	assert.Equal(t, []string{"detox"}, d.FiredScorers)
	assert.Equal(t, "HIGH", d.Confidence)
}

func TestEvaluateScorerSkipBelowThreshold(t *testing.T) {
	srv := detoxStub(t, map[string]float64{"toxicity": 0.30})
	defer srv.Close()

	cfg := scoringCfg()
	cfg.Detox = config.DetoxConfig{Enabled: true, BaseURL: srv.URL}
	p := newPrefilter(t, cfg)

	d := p.Evaluate(context.Background(), "some neutral-looking sentence", true)
	assert.Equal(t, Skip, d.Action)
	assert.InDelta(t, 0.30, d.TopScore(), 1e-9)
}

func TestEvaluateDirectednessLoosensForReplies(t *testing.T) {
	srv := detoxStub(t, map[string]float64{"insult": 0.88})
	defer srv.Close()

	cfg := scoringCfg()
	cfg.Detox = config.DetoxConfig{Enabled: true, BaseURL: srv.URL}
	p := newPrefilter(t, cfg)

	// weak third-person phrasing: directed only when replying
	text := "this guy is clueless honestly"
	reply := p.Evaluate(context.Background(), text, false)
	topLevel := p.Evaluate(context.Background(), text, true)

	assert.Equal(t, Send, reply.Action, "0.88 insult crosses the directed 0.80 threshold in a reply")
	assert.Equal(t, Skip, topLevel.Action, "0.88 insult stays under the undirected 0.95 threshold at top level")
}

func TestCountersSnapshot(t *testing.T) {
	p := newPrefilter(t, scoringCfg())

	p.Evaluate(context.Background(), "go kys", false)       // pattern hit (also scored)
	p.Evaluate(context.Background(), "lmao", true)          // benign skip
	p.Evaluate(context.Background(), "ordinary text", true) // scored (no scorers -> skip)

	c := p.Snapshot()
	assert.Equal(t, int64(3), c.Scanned)
	assert.Equal(t, int64(1), c.PatternHits)
	assert.Equal(t, int64(1), c.BenignSkips)
	assert.Equal(t, int64(2), c.Scored)
	assert.Equal(t, int64(1), c.Escalated)
	assert.Equal(t, int64(2), c.Skipped)
}

func TestConfidenceBuckets(t *testing.T) {
	p := newPrefilter(t, scoringCfg())

	assert.Equal(t, "", p.ConfidenceBucket(0.50))
	assert.Equal(t, "MEDIUM", p.ConfidenceBucket(0.91))
	assert.Equal(t, "HIGH", p.ConfidenceBucket(0.96))
	assert.Equal(t, "VERY HIGH", p.ConfidenceBucket(0.995))
}
