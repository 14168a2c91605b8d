package score

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/config"
)

// ambiguousTermsRe matches terms that are toxic only in context (accusatory
// use against a person). They escalate only combined with directedness or an
// elevated identity-attack score.
var ambiguousTermsRe = regexp.MustCompile(`\b(shill|bot|fed|plant|psyop|grifter|larp(er)?|disinfo|sheep|npc)s?\b`)

// ContextualTermsLabel is the pseudo-label recorded when the ambiguous-terms
// rule fires.
const ContextualTermsLabel = "contextual_terms"

// Result is the aggregate scoring outcome for one item.
type Result struct {
	Map Map
	// Fired lists prefixed labels whose score met their threshold
	Fired []string
	// FiredScorers lists the distinct scorer names that contributed a
	// fired label
	FiredScorers []string
	// Escalate is the merged boolean decision
	Escalate bool
}

type wrappedScorer struct {
	scorer  Scorer
	limiter *Limiter
	mode    config.ScorerMode
}

// Aggregator composes the configured scorers and the threshold tables.
type Aggregator struct {
	local    *wrappedScorer
	external []*wrappedScorer
	cfg      config.ScoringConfig
	logger   *zap.SugaredLogger
}

// NewAggregator wires up scorers from configuration. Scorers with no
// credentials stay constructed but unavailable; their calls are skipped.
func NewAggregator(cfg config.ScoringConfig, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	a := &Aggregator{cfg: cfg, logger: logger}

	a.local = &wrappedScorer{
		scorer:  NewDetoxScorer(cfg.Detox),
		limiter: NewLimiter(cfg.Detox.RequestsPerMinute),
	}

	if cfg.OpenAI.Mode != "" {
		a.external = append(a.external, &wrappedScorer{
			scorer:  NewOpenAIModScorer(cfg.OpenAI),
			limiter: NewLimiter(cfg.OpenAI.RequestsPerMinute),
			mode:    cfg.OpenAI.Mode,
		})
	}
	if cfg.Perspective.Mode != "" {
		a.external = append(a.external, &wrappedScorer{
			scorer:  NewPerspectiveScorer(cfg.Perspective),
			limiter: NewLimiter(cfg.Perspective.RequestsPerMinute),
			mode:    cfg.Perspective.Mode,
		})
	}

	return a
}

// newAggregatorForTest wires explicit scorers; used by tests.
func newAggregatorForTest(cfg config.ScoringConfig, local Scorer, externals map[config.ScorerMode][]Scorer) *Aggregator {
	a := &Aggregator{cfg: cfg, logger: zap.NewNop().Sugar()}
	if local != nil {
		a.local = &wrappedScorer{scorer: local, limiter: NewLimiter(0)}
	}
	for mode, scorers := range externals {
		for _, s := range scorers {
			a.external = append(a.external, &wrappedScorer{scorer: s, limiter: NewLimiter(0), mode: mode})
		}
	}
	return a
}

// Descriptors returns the capability descriptors of all configured scorers.
func (a *Aggregator) Descriptors() []Descriptor {
	var out []Descriptor
	if a.local != nil {
		out = append(out, a.local.scorer.Descriptor())
	}
	for _, w := range a.external {
		out = append(out, w.scorer.Descriptor())
	}
	return out
}

// Score runs the configured scorers against text and evaluates thresholds.
// directed selects the stricter threshold pair for insult/toxicity labels.
func (a *Aggregator) Score(ctx context.Context, text string, directed bool) Result {
	m := NewMap()

	// "only" mode on any external scorer substitutes it for the local one
	skipLocal := false
	for _, w := range a.external {
		if w.mode == config.ModeOnly && w.scorer.Available() {
			skipLocal = true
		}
	}

	localContributed := false
	if !skipLocal && a.local != nil {
		localContributed = a.invoke(ctx, a.local, text, m)
	}
	localFired := len(a.evaluate(m, directed)) > 0

	for _, w := range a.external {
		switch w.mode {
		case config.ModeAll, config.ModeOnly:
			a.invoke(ctx, w, text, m)
		case config.ModeConfirm:
			// Call only when the cheap scorer already fired, or could
			// not contribute at all
			if localFired || !localContributed {
				a.invoke(ctx, w, text, m)
			}
		}
	}

	fired := a.evaluate(m, directed)

	// Contextual-term escalation: ambiguous accusatory terms combined with
	// directedness or an elevated identity-attack signal
	if ambiguousTermsRe.MatchString(strings.ToLower(text)) {
		identity := m.Scores["identity_attack"]
		if v := m.Scores["perspective_IDENTITY_ATTACK"]; v > identity {
			identity = v
		}
		if directed || identity >= a.cfg.IdentityAttackFloor {
			fired = append(fired, ContextualTermsLabel)
		}
	}

	return Result{
		Map:          m,
		Fired:        fired,
		FiredScorers: a.firedScorers(fired),
		Escalate:     len(fired) > 0,
	}
}

// invoke calls one scorer under its rate limiter and merges its labels.
// Returns true when the scorer actually contributed scores.
func (a *Aggregator) invoke(ctx context.Context, w *wrappedScorer, text string, m Map) bool {
	name := w.scorer.Descriptor().Name
	if !w.scorer.Available() {
		return false
	}
	if !w.limiter.Allow() {
		a.logger.Debugw("Scorer rate limit reached, skipping", "scorer", name)
		return false
	}

	raw, err := w.scorer.Score(ctx, text)
	if err != nil {
		a.logger.Warnw("Scorer call failed", "scorer", name, "error", err)
		return false
	}

	m.MergeFrom(w.scorer.Descriptor().Prefix, raw)
	return len(raw) > 0
}

// evaluate returns the prefixed labels whose scores meet their applicable
// threshold.
func (a *Aggregator) evaluate(m Map, directed bool) []string {
	var fired []string
	for _, label := range m.SortedLabels() {
		if m.Scores[label] >= a.ThresholdFor(label, directed) {
			fired = append(fired, label)
		}
	}
	return fired
}

// ThresholdFor resolves the applicable threshold for a prefixed label.
// Insult and toxicity labels use the directed/undirected pair; other labels
// use the owning scorer's default, falling back to the base threshold.
func (a *Aggregator) ThresholdFor(label string, directed bool) float64 {
	base, owner := a.lookupLabel(label)

	switch strings.ToLower(base) {
	case "insult":
		if directed {
			return a.cfg.InsultDirected
		}
		return a.cfg.InsultUndirected
	case "toxicity":
		if directed {
			return a.cfg.ToxicityDirected
		}
		return a.cfg.ToxicityUndirected
	}

	if owner != nil {
		if t, ok := owner.Thresholds[base]; ok {
			return t
		}
	}
	return a.cfg.Threshold
}

// lookupLabel strips the scorer prefix and returns the base label plus the
// owning scorer's descriptor.
func (a *Aggregator) lookupLabel(label string) (string, *Descriptor) {
	for _, d := range a.Descriptors() {
		if d.Prefix != "" && strings.HasPrefix(label, d.Prefix) {
			desc := d
			return strings.TrimPrefix(label, d.Prefix), &desc
		}
	}
	// bare label: owned by the local scorer
	if a.local != nil {
		desc := a.local.scorer.Descriptor()
		return label, &desc
	}
	return label, nil
}

// firedScorers maps fired labels back to distinct scorer names.
func (a *Aggregator) firedScorers(fired []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, label := range fired {
		if label == ContextualTermsLabel {
			continue
		}
		name := "detox"
		for _, d := range a.Descriptors() {
			if d.Prefix != "" && strings.HasPrefix(label, d.Prefix) {
				name = d.Name
				break
			}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
