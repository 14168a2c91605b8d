// Package prefilter gates each incoming item before the expensive LLM
// arbiter: deterministic pattern rules force escalation, benign exclamations
// short-circuit to a skip, and everything else goes through the ML scorers.
package prefilter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/pattern"
	"github.com/modsieve/modsieve/score"
)

// Action is the three-way gate decision.
type Action string

const (
	// MustEscalate means a deterministic rule matched; the arbiter sees the
	// item regardless of scorer output
	MustEscalate Action = "MUST_ESCALATE"
	// Send means the scorers crossed a threshold
	Send Action = "SEND"
	// Skip means the item needs no arbiter attention
	Skip Action = "SKIP"
)

// Decision is the prefilter verdict for one item.
type Decision struct {
	Action Action
	// Scores is the merged score map. Pattern escalations still carry the
	// scorer output as arbiter context; the rule itself never appears as a
	// numeric score
	Scores score.Map
	// Trigger names the pattern rule behind a MUST_ESCALATE, empty otherwise
	Trigger string
	// Fired lists the scorer labels that crossed their thresholds
	Fired []string
	// FiredScorers lists distinct scorer names behind the fired labels
	FiredScorers []string
	// Directed records the directedness call used for threshold selection
	Directed bool
	// Confidence is the human-readable bucket for the top score
	Confidence string
}

// TopScore returns the highest merged score. Pattern escalations report 1.0
// regardless of what the scorers said.
func (d Decision) TopScore() float64 {
	if d.Trigger != "" {
		return 1.0
	}
	_, v := d.Scores.Max()
	return v
}

// Counters is a snapshot of the running prefilter tallies.
type Counters struct {
	Scanned     int64 `json:"scanned"`
	PatternHits int64 `json:"pattern_hits"`
	BenignSkips int64 `json:"benign_skips"`
	Scored      int64 `json:"scored"`
	Escalated   int64 `json:"escalated"`
	Skipped     int64 `json:"skipped"`
}

// Prefilter combines the pattern rules and the scorer aggregate into the
// three-way gate.
type Prefilter struct {
	agg    *score.Aggregator
	cfg    config.ScoringConfig
	logger *zap.SugaredLogger

	mu       sync.Mutex
	counters Counters
}

// New creates a prefilter around an aggregator.
func New(agg *score.Aggregator, cfg config.ScoringConfig, logger *zap.SugaredLogger) *Prefilter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Prefilter{agg: agg, cfg: cfg, logger: logger}
}

// Evaluate gates one item. isTopLevel loosens directedness inference for
// replies, where a bare second person usually addresses the parent author.
func (p *Prefilter) Evaluate(ctx context.Context, text string, isTopLevel bool) Decision {
	p.bump(func(c *Counters) { c.Scanned++ })

	directed := pattern.IsStronglyDirected(text) ||
		(pattern.IsWeaklyDirected(text) && !isTopLevel)

	if m := pattern.Classify(text, isTopLevel); m != nil {
		p.bump(func(c *Counters) { c.PatternHits++; c.Escalated++ })
		// the rule forces escalation, but the scorers still run so the
		// arbiter and the benign ledger see the full score map
		res := p.agg.Score(ctx, text, directed)
		p.bump(func(c *Counters) { c.Scored++ })
		res.Map.Trigger = m.Rule
		return Decision{
			Action:       MustEscalate,
			Scores:       res.Map,
			Trigger:      m.Rule,
			Fired:        res.Fired,
			FiredScorers: res.FiredScorers,
			Directed:     directed,
			Confidence:   p.ConfidenceBucket(1.0),
		}
	}

	if pattern.IsBenignExclamation(text) {
		p.bump(func(c *Counters) { c.BenignSkips++; c.Skipped++ })
		return Decision{Action: Skip, Scores: score.NewMap(), Directed: directed}
	}

	res := p.agg.Score(ctx, text, directed)
	p.bump(func(c *Counters) { c.Scored++ })

	_, top := res.Map.Max()
	if !res.Escalate {
		p.bump(func(c *Counters) { c.Skipped++ })
		if p.cfg.BorderlineNotice > 0 && top >= p.cfg.BorderlineNotice {
			label, _ := res.Map.Max()
			p.logger.Infow("Borderline item below threshold",
				"label", label,
				"score", top,
				"directed", directed,
			)
		}
		return Decision{
			Action:     Skip,
			Scores:     res.Map,
			Directed:   directed,
			Confidence: p.ConfidenceBucket(top),
		}
	}

	p.bump(func(c *Counters) { c.Escalated++ })
	return Decision{
		Action:       Send,
		Scores:       res.Map,
		Fired:        res.Fired,
		FiredScorers: res.FiredScorers,
		Directed:     directed,
		Confidence:   p.ConfidenceBucket(top),
	}
}

// ConfidenceBucket maps a score onto the logging/report buckets.
func (p *Prefilter) ConfidenceBucket(v float64) string {
	switch {
	case p.cfg.ConfVeryHigh > 0 && v >= p.cfg.ConfVeryHigh:
		return "VERY HIGH"
	case p.cfg.ConfHigh > 0 && v >= p.cfg.ConfHigh:
		return "HIGH"
	case p.cfg.ConfMedium > 0 && v >= p.cfg.ConfMedium:
		return "MEDIUM"
	default:
		return ""
	}
}

// Snapshot returns a copy of the running counters.
func (p *Prefilter) Snapshot() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

func (p *Prefilter) bump(f func(*Counters)) {
	p.mu.Lock()
	f(&p.counters)
	p.mu.Unlock()
}
