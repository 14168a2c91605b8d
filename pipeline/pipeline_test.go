package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modsieve/modsieve/arbiter"
	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/notify"
	"github.com/modsieve/modsieve/outcome"
	"github.com/modsieve/modsieve/pattern"
	"github.com/modsieve/modsieve/policy"
	"github.com/modsieve/modsieve/prefilter"
	"github.com/modsieve/modsieve/reddit"
	"github.com/modsieve/modsieve/score"
)

func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

type fakeSource struct {
	items      []reddit.Item
	parentText string
}

func (f *fakeSource) FetchNewComments(_ context.Context, _ string, _ int) ([]reddit.Item, error) {
	return f.items, nil
}
func (f *fakeSource) FetchParentText(_ context.Context, _ string) (string, error) {
	return f.parentText, nil
}

type fakeActuator struct {
	reports []string
	removes []string
}

func (f *fakeActuator) Report(_ context.Context, fullname, reason string, _ bool) error {
	f.reports = append(f.reports, fullname+"|"+reason)
	return nil
}
func (f *fakeActuator) Remove(_ context.Context, fullname string, _, _ bool) error {
	f.removes = append(f.removes, fullname)
	return nil
}

type fakeArbiter struct {
	decision arbiter.Decision
	calls    int
	lastItem arbiter.Item
}

func (f *fakeArbiter) Decide(_ context.Context, item arbiter.Item) (*arbiter.Decision, error) {
	f.calls++
	f.lastItem = item
	d := f.decision
	return &d, nil
}

func testPipeline(t *testing.T, arb *fakeArbiter, act *fakeActuator, src *fakeSource, mutate ...func(*config.Config)) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Reddit.Subreddits = []string{"testsub"}
	cfg.Scoring = config.ScoringConfig{
		Threshold: 0.9, InsultDirected: 0.8, InsultUndirected: 0.95,
		ToxicityDirected: 0.85, ToxicityUndirected: 0.95,
		ConfMedium: 0.9, ConfHigh: 0.95, ConfVeryHigh: 0.99,
	}
	cfg.Policy = config.PolicyConfig{
		AutoRemove: true, PatternAutoRemove: true, Quorum: 2,
		ScorerMinimums: map[string]float64{"detox": 0.97},
	}
	cfg.Report = config.ReportConfig{Enabled: true, ReasonTemplate: "AI: {verdict} ({confidence})"}

	// policy and prefilter snapshot the config at construction, so any
	// per-test overrides have to land before they are built
	for _, m := range mutate {
		m(cfg)
	}

	agg := score.NewAggregator(cfg.Scoring, nil)

	seen, err := outcome.OpenSeenSet(filepath.Join(dir, "scan_log.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { seen.Close() })
	reported, err := outcome.OpenReportedStore(filepath.Join(dir, "reported.json"))
	require.NoError(t, err)
	benign, err := outcome.OpenBenignStore(filepath.Join(dir, "benign.json"), 48*time.Hour)
	require.NoError(t, err)

	return &Pipeline{
		cfg:      cfg,
		logger:   nopLogger(),
		source:   src,
		actuate:  act,
		pre:      prefilter.New(agg, cfg.Scoring, nil),
		arb:      arb,
		pol:      policy.New(cfg.Policy, agg.Descriptors(), nil),
		notif:    notify.New(config.NotifyConfig{}, nil),
		seen:     seen,
		reported: reported,
		benign:   benign,
	}
}

func TestProcessItemPatternRemoval(t *testing.T) {
	arb := &fakeArbiter{decision: arbiter.Decision{Verdict: arbiter.VerdictReport, Reason: "self-harm encouragement"}}
	act := &fakeActuator{}
	src := &fakeSource{parentText: "parent words"}
	p := testPipeline(t, arb, act, src)

	item := reddit.Item{
		Fullname:  "t1_bad",
		Body:      "go kys already",
		ParentID:  "t1_parent",
		Permalink: "/r/testsub/x/bad",
		LinkTitle: "Some post",
	}
	require.NoError(t, p.processItem(context.Background(), item))

	assert.Equal(t, 1, arb.calls)
	assert.Equal(t, "parent words", arb.lastItem.ParentText, "replies carry parent context")
	assert.Equal(t, []string{"t1_bad"}, act.removes, "pattern match auto-removes")
	require.Len(t, act.reports, 1)
	assert.Contains(t, act.reports[0], "AI: self-harm encouragement (VERY HIGH)")

	assert.True(t, p.reported.Has("t1_bad"))
	assert.True(t, p.seen.Seen("t1_bad"))
	assert.True(t, p.alreadyHandled("t1_bad"))
}

func TestProcessItemBenignVerdict(t *testing.T) {
	arb := &fakeArbiter{decision: arbiter.Decision{Verdict: arbiter.VerdictBenign, Reason: "heated but fine"}}
	act := &fakeActuator{}
	p := testPipeline(t, arb, act, &fakeSource{}, func(cfg *config.Config) {
		cfg.Policy.PatternAutoRemove = false
	})

	// pattern escalates, arbiter clears: no action, benign-cached
	item := reddit.Item{Fullname: "t1_ok", Body: "go kys already", ParentID: "t3_post", Permalink: "/r/testsub/x/ok"}
	require.NoError(t, p.processItem(context.Background(), item))

	assert.Empty(t, act.reports)
	assert.Empty(t, act.removes)
	assert.False(t, p.reported.Has("t1_ok"))
	assert.True(t, p.benign.Has("t1_ok"))

	recs := p.benign.All()
	require.Len(t, recs, 1)
	assert.Equal(t, "heated but fine", recs[0].Reason)
	assert.Equal(t, "/r/testsub/x/ok", recs[0].Permalink)
	assert.Equal(t, pattern.RuleSelfHarm, recs[0].Trigger)
	assert.False(t, recs[0].IsTopLevel)
	assert.NotZero(t, recs[0].Timestamp)
}

func TestProcessItemSkipNeverCallsArbiter(t *testing.T) {
	arb := &fakeArbiter{}
	act := &fakeActuator{}
	p := testPipeline(t, arb, act, &fakeSource{})

	item := reddit.Item{Fullname: "t1_fine", Body: "thanks for sharing", ParentID: "t3_post"}
	require.NoError(t, p.processItem(context.Background(), item))

	assert.Zero(t, arb.calls)
	assert.True(t, p.seen.Seen("t1_fine"))
	assert.Empty(t, act.reports)
}

func TestScanOnceDeduplicates(t *testing.T) {
	arb := &fakeArbiter{decision: arbiter.Decision{Verdict: arbiter.VerdictBenign}}
	act := &fakeActuator{}
	src := &fakeSource{items: []reddit.Item{
		{Fullname: "t1_one", Body: "thanks for sharing", ParentID: "t3_p"},
		{Fullname: "t1_two", Body: "great post", ParentID: "t3_p"},
	}}
	p := testPipeline(t, arb, act, src)

	require.NoError(t, p.scanOnce(context.Background()))
	assert.Equal(t, 2, p.seen.Len())

	// second poll returns the same listing; nothing is reprocessed
	counters := p.pre.Snapshot()
	require.NoError(t, p.scanOnce(context.Background()))
	assert.Equal(t, counters, p.pre.Snapshot())
}

func TestRenderReason(t *testing.T) {
	p := &Pipeline{cfg: &config.Config{}}
	p.cfg.Report.ReasonTemplate = "AI flagged: {verdict} [{confidence}]"

	assert.Equal(t, "AI flagged: direct insult [HIGH]", p.renderReason("direct insult", "HIGH"))
	assert.Equal(t, "AI flagged: direct insult [unrated]", p.renderReason("direct insult", ""))

	p.cfg.Report.ReasonTemplate = ""
	assert.Equal(t, "AI: x (MEDIUM)", p.renderReason("x", "MEDIUM"))

	p.cfg.Report.RuleBucket = "Rule 2"
	assert.Equal(t, "Rule 2: AI: x (MEDIUM)", p.renderReason("x", "MEDIUM"))
}
