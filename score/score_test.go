package score

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsieve/modsieve/config"
)

type fakeScorer struct {
	desc      Descriptor
	scores    map[string]float64
	err       error
	available bool
	calls     int
}

func (f *fakeScorer) Descriptor() Descriptor { return f.desc }
func (f *fakeScorer) Available() bool        { return f.available }
func (f *fakeScorer) Score(_ context.Context, _ string) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func localDesc() Descriptor {
	return Descriptor{
		Name:   "detox",
		Prefix: "",
		Labels: []string{"toxicity", "insult", "identity_attack", "threat"},
		Thresholds: map[string]float64{
			"toxicity":        0.90,
			"insult":          0.90,
			"identity_attack": 0.80,
			"threat":          0.80,
		},
	}
}

func externalDesc() Descriptor {
	return Descriptor{
		Name:       "openai",
		Prefix:     "openai_",
		Labels:     []string{"harassment", "violence"},
		Thresholds: map[string]float64{"harassment": 0.80, "violence": 0.85},
	}
}

func baseCfg() config.ScoringConfig {
	return config.ScoringConfig{
		Threshold:           0.90,
		InsultDirected:      0.80,
		InsultUndirected:    0.95,
		ToxicityDirected:    0.85,
		ToxicityUndirected:  0.95,
		IdentityAttackFloor: 0.50,
	}
}

func TestAggregatorLocalOnly(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"toxicity": 0.97}}
	agg := newAggregatorForTest(baseCfg(), local, nil)

	res := agg.Score(context.Background(), "some awful text", false)
	assert.True(t, res.Escalate)
	assert.Equal(t, []string{"toxicity"}, res.Fired)
	assert.Equal(t, []string{"detox"}, res.FiredScorers)
	assert.InDelta(t, 0.97, res.Map.Scores["toxicity"], 1e-9)
}

func TestAggregatorConfirmModeSkipsWhenLocalClean(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"toxicity": 0.10}}
	ext := &fakeScorer{desc: externalDesc(), available: true, scores: map[string]float64{"harassment": 0.99}}
	agg := newAggregatorForTest(baseCfg(), local, map[config.ScorerMode][]Scorer{
		config.ModeConfirm: {ext},
	})

	res := agg.Score(context.Background(), "fine text", false)
	assert.False(t, res.Escalate)
	assert.Zero(t, ext.calls, "confirm scorer must not run when local scorer is clean")
	_, ok := res.Map.Scores["openai_harassment"]
	assert.False(t, ok)
}

func TestAggregatorConfirmModeRunsWhenLocalFires(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"toxicity": 0.95}}
	ext := &fakeScorer{desc: externalDesc(), available: true, scores: map[string]float64{"harassment": 0.99}}
	agg := newAggregatorForTest(baseCfg(), local, map[config.ScorerMode][]Scorer{
		config.ModeConfirm: {ext},
	})

	res := agg.Score(context.Background(), "awful text", false)
	assert.True(t, res.Escalate)
	assert.Equal(t, 1, ext.calls)
	assert.Contains(t, res.Fired, "openai_harassment")
	assert.ElementsMatch(t, []string{"detox", "openai"}, res.FiredScorers)
}

func TestAggregatorConfirmModeRunsWhenLocalUnavailable(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: false}
	ext := &fakeScorer{desc: externalDesc(), available: true, scores: map[string]float64{"harassment": 0.99}}
	agg := newAggregatorForTest(baseCfg(), local, map[config.ScorerMode][]Scorer{
		config.ModeConfirm: {ext},
	})

	res := agg.Score(context.Background(), "awful text", false)
	assert.Zero(t, local.calls)
	assert.Equal(t, 1, ext.calls)
	assert.True(t, res.Escalate)
}

func TestAggregatorOnlyModeSkipsLocal(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"toxicity": 0.99}}
	ext := &fakeScorer{desc: externalDesc(), available: true, scores: map[string]float64{"violence": 0.10}}
	agg := newAggregatorForTest(baseCfg(), local, map[config.ScorerMode][]Scorer{
		config.ModeOnly: {ext},
	})

	res := agg.Score(context.Background(), "text", false)
	assert.Zero(t, local.calls, "local scorer must be substituted in only mode")
	assert.Equal(t, 1, ext.calls)
	assert.False(t, res.Escalate)
}

func TestAggregatorScorerErrorIsIsolated(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, err: context.DeadlineExceeded}
	ext := &fakeScorer{desc: externalDesc(), available: true, scores: map[string]float64{"harassment": 0.95}}
	agg := newAggregatorForTest(baseCfg(), local, map[config.ScorerMode][]Scorer{
		config.ModeAll: {ext},
	})

	res := agg.Score(context.Background(), "text", false)
	assert.True(t, res.Escalate, "one scorer failing must not suppress the others")
	assert.Equal(t, []string{"openai_harassment"}, res.Fired)
}

func TestAggregatorDirectedThresholds(t *testing.T) {
	// 0.88 insult: above the directed threshold (0.80), below undirected (0.95)
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"insult": 0.88}}
	agg := newAggregatorForTest(baseCfg(), local, nil)

	assert.True(t, agg.Score(context.Background(), "text", true).Escalate)
	assert.False(t, agg.Score(context.Background(), "text", false).Escalate)
}

func TestAggregatorDescriptorDefaultThreshold(t *testing.T) {
	local := &fakeScorer{desc: localDesc(), available: true, scores: map[string]float64{"threat": 0.82}}
	agg := newAggregatorForTest(baseCfg(), local, nil)

	// threat uses the descriptor default 0.80, not the base 0.90
	res := agg.Score(context.Background(), "text", false)
	assert.True(t, res.Escalate)
	assert.Equal(t, []string{"threat"}, res.Fired)
}

func TestAggregatorContextualTerms(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		directed bool
		identity float64
		want     bool
	}{
		{"directed accusation", "you are such a shill", true, 0.0, true},
		{"undirected low identity", "lots of bots around here", false, 0.1, false},
		{"undirected high identity", "typical shill behavior", false, 0.7, true},
		{"no ambiguous term", "you are wrong about this", true, 0.9, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := &fakeScorer{desc: localDesc(), available: true,
				scores: map[string]float64{"identity_attack": tc.identity}}
			agg := newAggregatorForTest(baseCfg(), local, nil)

			res := agg.Score(context.Background(), tc.text, tc.directed)
			if tc.want {
				assert.Contains(t, res.Fired, ContextualTermsLabel)
				assert.True(t, res.Escalate)
			} else {
				assert.NotContains(t, res.Fired, ContextualTermsLabel)
			}
		})
	}
}

func TestAggregatorThresholdMonotonicity(t *testing.T) {
	// Raising every threshold can only turn escalations off, never on
	scores := map[string]float64{"toxicity": 0.93, "insult": 0.91, "threat": 0.75}
	for _, directed := range []bool{true, false} {
		lowCfg := baseCfg()
		highCfg := baseCfg()
		highCfg.Threshold = 0.99
		highCfg.InsultDirected = 0.99
		highCfg.InsultUndirected = 0.99
		highCfg.ToxicityDirected = 0.99
		highCfg.ToxicityUndirected = 0.99

		low := newAggregatorForTest(lowCfg, &fakeScorer{desc: localDesc(), available: true, scores: scores}, nil)
		high := newAggregatorForTest(highCfg, &fakeScorer{desc: localDesc(), available: true, scores: scores}, nil)

		lowRes := low.Score(context.Background(), "text", directed)
		highRes := high.Score(context.Background(), "text", directed)
		if highRes.Escalate {
			assert.True(t, lowRes.Escalate, "stricter thresholds produced an escalation the laxer ones did not")
		}
		assert.Subset(t, lowRes.Fired, highRes.Fired)
	}
}

func TestMapMergePrefixesAndMax(t *testing.T) {
	m := NewMap()
	m.MergeFrom("", map[string]float64{"toxicity": 0.40, "insult": 0.60})
	m.MergeFrom("openai_", map[string]float64{"harassment": 0.85})
	m.MergeFrom("perspective_", map[string]float64{"TOXICITY": 0.85})

	label, v := m.Max()
	assert.InDelta(t, 0.85, v, 1e-9)
	// deterministic tie-break by label name
	assert.Equal(t, "openai_harassment", label)

	assert.InDelta(t, 0.60, m.MaxWithPrefix(""), 1e-9)
	assert.InDelta(t, 0.85, m.MaxWithPrefix("perspective_"), 1e-9)
}

func TestMapSetClamps(t *testing.T) {
	m := NewMap()
	m.Set("a", 1.7)
	m.Set("b", -0.2)
	assert.Equal(t, 1.0, m.Scores["a"])
	assert.Equal(t, 0.0, m.Scores["b"])
}

func TestLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	lim := NewLimiterWithClock(2, clock)

	require.True(t, lim.Allow())
	require.True(t, lim.Allow())
	assert.False(t, lim.Allow(), "third call within the window must be rejected")

	now = now.Add(61 * time.Second)
	assert.True(t, lim.Allow(), "window must slide after a minute")
}

func TestLimiterUnlimited(t *testing.T) {
	lim := NewLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, lim.Allow())
	}
}
