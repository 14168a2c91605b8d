package arbiter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/score"
)

func itemScores(values map[string]float64) score.Map {
	m := score.NewMap()
	for k, v := range values {
		m.Set(k, v)
	}
	return m
}

type fakeResult struct {
	resp *Response
	err  error
}

type fakeBackend struct {
	name    string
	results []fakeResult
	calls   int
	models  []string
}

func (f *fakeBackend) Name() string    { return f.name }
func (f *fakeBackend) Available() bool { return true }
func (f *fakeBackend) Complete(_ context.Context, model string, _ Request) (*Response, error) {
	f.models = append(f.models, model)
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	return r.resp, r.err
}

func reportResponse(reason string) *Response {
	return &Response{Content: "VERDICT: REPORT\nREASON: " + reason, Usage: Usage{TotalTokens: 42}}
}

func writeGuidelines(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guidelines.md")
	require.NoError(t, os.WriteFile(path, []byte("Report personal attacks."), 0o644))
	return path
}

func newTestArbiter(t *testing.T, cfg config.ArbiterConfig, backends ...Backend) *Arbiter {
	t.Helper()
	if cfg.GuidelinesPath == "" {
		cfg.GuidelinesPath = writeGuidelines(t)
	}
	a, err := New(cfg, NewRegistry(backends...), nil, nil)
	require.NoError(t, err)
	a.sleep = func(context.Context, time.Duration) error { return nil }
	return a
}

func TestDecidePrimaryAnswers(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{{resp: reportResponse("direct insult")}}}
	a := newTestArbiter(t, config.ArbiterConfig{Model: "prim/m1"}, prim)

	dec, err := a.Decide(context.Background(), Item{ID: "t1_abc", Text: "bad text"})
	require.NoError(t, err)
	assert.Equal(t, VerdictReport, dec.Verdict)
	assert.Equal(t, "direct insult", dec.Reason)
	assert.Equal(t, "prim/m1", dec.Model)
	assert.False(t, dec.Fallback)
	assert.Equal(t, []string{"m1"}, prim.models, "backend must see the spec without its prefix")
}

func TestDecideFallbackOnLongRateLimit(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{
		{err: &errors.RateLimitError{Model: "m1", RetryAfter: 2 * time.Hour}},
	}}
	fall := &fakeBackend{name: "fall", results: []fakeResult{{resp: reportResponse("fallback verdict")}}}

	a := newTestArbiter(t, config.ArbiterConfig{
		Model:            "prim/m1",
		Fallbacks:        []string{"fall/m2"},
		MaxRetries:       2,
		ShortWaitSeconds: 90,
	}, prim, fall)

	dec, err := a.Decide(context.Background(), Item{ID: "t1_x"})
	require.NoError(t, err)
	assert.Equal(t, VerdictReport, dec.Verdict)
	assert.Equal(t, "fall/m2", dec.Model)
	assert.True(t, dec.Fallback)
	assert.Equal(t, 1, prim.calls, "a 2h wait must not be retried on the same model")

	// primary is now on cooldown: the next decision must not touch it
	dec, err = a.Decide(context.Background(), Item{ID: "t1_y"})
	require.NoError(t, err)
	assert.Equal(t, "fall/m2", dec.Model)
	assert.Equal(t, 1, prim.calls)
	assert.Equal(t, 2, fall.calls)
}

func TestDecideShortWaitRetriesSameModel(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{
		{err: &errors.RateLimitError{Model: "m1", RetryAfter: 2 * time.Second}},
		{resp: reportResponse("after retry")},
	}}

	var slept []time.Duration
	a := newTestArbiter(t, config.ArbiterConfig{
		Model:            "prim/m1",
		MaxRetries:       3,
		ShortWaitSeconds: 90,
	}, prim)
	a.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	dec, err := a.Decide(context.Background(), Item{ID: "t1_z"})
	require.NoError(t, err)
	assert.Equal(t, "prim/m1", dec.Model)
	assert.False(t, dec.Fallback)
	assert.Equal(t, 2, prim.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
	assert.False(t, a.onCooldown("prim/m1"), "success must clear any cooldown")
}

func TestDecideDailyQuotaCooldownClearsOnUTCRollover(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{
		{err: &errors.RateLimitError{Model: "m1", RetryAfter: 30 * time.Hour, Daily: true}},
		{resp: reportResponse("next day")},
	}}
	fall := &fakeBackend{name: "fall", results: []fakeResult{{resp: reportResponse("fallback")}}}

	a := newTestArbiter(t, config.ArbiterConfig{
		Model:     "prim/m1",
		Fallbacks: []string{"fall/m2"},
	}, prim, fall)

	now := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	dec, err := a.Decide(context.Background(), Item{ID: "t1_a"})
	require.NoError(t, err)
	assert.Equal(t, "fall/m2", dec.Model)
	assert.True(t, a.onCooldown("prim/m1"))

	// 3 hours later the UTC date has rolled over; quota is fresh even though
	// the 30h wait has not elapsed
	now = now.Add(3 * time.Hour)
	assert.False(t, a.onCooldown("prim/m1"))

	dec, err = a.Decide(context.Background(), Item{ID: "t1_b"})
	require.NoError(t, err)
	assert.Equal(t, "prim/m1", dec.Model)
}

func TestChainDropsDuplicateSpecs(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{{err: errors.New("backend down")}}}
	fall := &fakeBackend{name: "fall", results: []fakeResult{{resp: reportResponse("second opinion")}}}

	a := newTestArbiter(t, config.ArbiterConfig{
		Model:     "prim/m1",
		Fallbacks: []string{"prim/m1", "fall/m2", ""},
	}, prim, fall)
	assert.Equal(t, []string{"prim/m1", "fall/m2"}, a.chain)

	dec, err := a.Decide(context.Background(), Item{ID: "t1_dup"})
	require.NoError(t, err)
	assert.Equal(t, "fall/m2", dec.Model)
	assert.Equal(t, 1, prim.calls, "a spec listed twice is tried once")
}

func TestShortCooldownClearsOnUTCRollover(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{{resp: reportResponse("ok")}}}
	a := newTestArbiter(t, config.ArbiterConfig{Model: "prim/m1"}, prim)

	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.setCooldown("prim/m1", 2*time.Hour)
	assert.True(t, a.onCooldown("prim/m1"))

	// 00:10 the next day: the nominal 2h wait has not elapsed, but every
	// cooldown resets with the UTC date
	now = now.Add(40 * time.Minute)
	assert.False(t, a.onCooldown("prim/m1"))
}

func TestDailyCallCounterResetsOnRollover(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{{resp: reportResponse("ok")}}}
	a := newTestArbiter(t, config.ArbiterConfig{Model: "prim/m1"}, prim)

	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	_, err := a.Decide(context.Background(), Item{ID: "t1_a"})
	require.NoError(t, err)
	_, err = a.Decide(context.Background(), Item{ID: "t1_b"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.DailyCalls())

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 0, a.DailyCalls(), "counter resets with the UTC date")

	_, err = a.Decide(context.Background(), Item{ID: "t1_c"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.DailyCalls())
}

func TestDecideChainExhaustedDefaultsBenign(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{
		{err: &errors.RateLimitError{Model: "m1", RetryAfter: time.Hour}},
	}}

	a := newTestArbiter(t, config.ArbiterConfig{Model: "prim/m1"}, prim)

	dec, err := a.Decide(context.Background(), Item{ID: "t1_q", TopScore: 0.95})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrModelUnavailable))
	require.NotNil(t, dec)
	assert.Equal(t, VerdictBenign, dec.Verdict)
	assert.Empty(t, dec.Model)
}

func TestRegistryResolve(t *testing.T) {
	prim := &fakeBackend{name: "prim", results: []fakeResult{{}}}
	r := NewRegistry(prim)

	b, model, err := r.Resolve("prim/vendor/model-x")
	require.NoError(t, err)
	assert.Equal(t, "prim", b.Name())
	assert.Equal(t, "vendor/model-x", model, "model part keeps its own slashes")

	_, _, err = r.Resolve("nope/m")
	assert.Error(t, err)
	_, _, err = r.Resolve("plainmodel")
	assert.Error(t, err)
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name       string
		content    string
		wantV      Verdict
		wantReason string
	}{
		{"structured report", "VERDICT: REPORT\nREASON: targeted harassment", VerdictReport, "targeted harassment"},
		{"structured benign", "verdict: benign\nreason: heated but acceptable", VerdictBenign, "heated but acceptable"},
		{"prose wrapped", "After review I believe this is fine.\nVERDICT: BENIGN", VerdictBenign, defaultBenignReason},
		{"token scan fallback", "I would REPORT this comment for the slur.", VerdictReport, defaultReportReason},
		{"unparseable defaults benign", "I cannot evaluate this.", VerdictBenign, defaultBenignReason},
		{"skip counts as benign", "VERDICT: SKIP\nREASON: nothing actionable", VerdictBenign, "nothing actionable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, reason := parseVerdict(tc.content)
			assert.Equal(t, tc.wantV, v)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	d, ok := parseRetryAfterHeader("120")
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	d, ok = parseRetryAfterBody(`{"error":{"message":"rate limited","details":[{"retryDelay":"29s"}]}}`)
	require.True(t, ok)
	assert.Equal(t, 29*time.Second, d)

	d, ok = parseRetryAfterBody(`{"error":{"message":"Please retry in 2m5s."}}`)
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute+5*time.Second, d)

	d, ok = parseRetryAfterBody(`{"error":{"message":"Quota exceeded, resets in 24h0m0s"}}`)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, d)

	_, ok = parseRetryAfterBody(`{"error":{"message":"internal error"}}`)
	assert.False(t, ok)

	assert.True(t, isDailyQuota(`{"error":{"message":"Quota exceeded for requests per day"}}`))
	assert.False(t, isDailyQuota(`{"error":{"message":"too many requests"}}`))
}

func TestBuildUserPrompt(t *testing.T) {
	scores := itemScores(map[string]float64{"insult": 0.93, "toxicity": 0.40})
	item := Item{
		ID:         "t1_p",
		Text:       "you are a clown",
		PostTitle:  "Weekly discussion",
		ParentText: "I think the policy is reasonable.",
		IsTopLevel: false,
		HasQuoted:  true,
		Scores:     scores,
		Trigger:    "direct_insult",
	}

	prompt := buildUserPrompt(item, 10)
	assert.Contains(t, prompt, "reply to another comment")
	assert.Contains(t, prompt, "Weekly discussion")
	assert.Contains(t, prompt, "I think th…", "parent must be truncated")
	assert.Contains(t, prompt, "quotes someone else's words")
	assert.Contains(t, prompt, "pattern rule direct_insult")
	assert.Contains(t, prompt, "insult=0.93")
	assert.NotContains(t, prompt, "toxicity=0.40", "low scores stay out of the summary")
	assert.Contains(t, prompt, "you are a clown")
}
