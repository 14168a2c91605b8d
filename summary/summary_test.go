package summary

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/outcome"
)

func TestComputeWindow(t *testing.T) {
	end := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -7)
	inWindow := start.Add(24 * time.Hour)

	entries := []outcome.ScanEntry{
		{Fullname: "t1_a", TopScore: 0.2, SeenAt: inWindow},
		{Fullname: "t1_b", TopScore: 0.8, SeenAt: inWindow},
		{Fullname: "t1_old", TopScore: 1.0, SeenAt: start.Add(-time.Hour)},
		{Fullname: "t1_future", TopScore: 1.0, SeenAt: end},
	}
	reports := []outcome.ReportedRecord{
		{CommentID: "t1_b", Score: 0.8, ReportedAt: inWindow, Outcome: outcome.OutcomeRemoved},
		{CommentID: "t1_c", Score: 0.9, ReportedAt: inWindow, Outcome: outcome.OutcomeApproved},
		{CommentID: "t1_d", Score: 1.0, ReportedAt: inWindow, Outcome: outcome.OutcomePending},
		{CommentID: "t1_e", Score: 0.9, ReportedAt: start, Outcome: outcome.OutcomePending},
		{CommentID: "t1_out", Score: 1.0, ReportedAt: end.Add(time.Hour)},
	}

	// anything unresolved and older than the cutoff is left-up, not pending
	lagCutoff := inWindow
	w := Compute(entries, reports, start, end, lagCutoff)
	assert.Equal(t, 2, w.Scanned, "entries outside [start,end) are excluded")
	assert.InDelta(t, 0.5, w.AvgScoreAll, 1e-9)
	assert.Equal(t, 4, w.Reported)
	assert.InDelta(t, 0.9, w.AvgScoreReported, 1e-9)
	assert.Equal(t, 1, w.Removed)
	assert.Equal(t, 1, w.Approved)
	assert.Equal(t, 1, w.LeftUp, "unresolved and past the lag cutoff")
	assert.Equal(t, 1, w.Pending, "reported at the cutoff is still maturing")
	assert.InDelta(t, 0.5, w.Alignment, 1e-9)
}

func TestDeltaPct(t *testing.T) {
	assert.Equal(t, "+25.0%", deltaPct(5, 4))
	assert.Equal(t, "-50.0%", deltaPct(2, 4))
	assert.Equal(t, "±0.0%", deltaPct(4, 4))
	assert.Equal(t, "±0.0%", deltaPct(0, 0))
	assert.Equal(t, "+∞%", deltaPct(3, 0), "zero baseline with growth")
}

func TestReportRender(t *testing.T) {
	end := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	r := Report{
		Current: WindowStats{
			Start: end.AddDate(0, 0, -7), End: end,
			Scanned: 100, AvgScoreAll: 0.12,
			Reported: 10, AvgScoreReported: 0.93,
			Removed: 6, Approved: 2, LeftUp: 1, Pending: 1,
			Alignment: 0.75,
		},
		Previous: WindowStats{Scanned: 80, AvgScoreAll: 0.10, Reported: 0},
	}

	out := r.Render()
	assert.Contains(t, out, "Aug 17 – Aug 24 2026")
	assert.Contains(t, out, "Scanned: 100 (+25.0%)")
	assert.Contains(t, out, "Reported: 10 (+∞%)")
	assert.Contains(t, out, "6 removed, 2 approved, 1 left up, 1 pending")
	assert.Contains(t, out, "Mod alignment: 75%")
}

func TestGeneratorGating(t *testing.T) {
	dir := t.TempDir()
	reported, err := outcome.OpenReportedStore(filepath.Join(dir, "reported.json"))
	require.NoError(t, err)

	g := NewGenerator(filepath.Join(dir, "scan_log.jsonl"), reported,
		filepath.Join(dir, "summary_state.json"),
		config.SummaryConfig{Enabled: true, IntervalDays: 7, DecisionLagHours: 24}, nil)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	// first call initializes the gate instead of firing immediately
	due, err := g.Due()
	require.NoError(t, err)
	assert.False(t, due)

	now = now.AddDate(0, 0, 3)
	due, err = g.Due()
	require.NoError(t, err)
	assert.False(t, due)

	now = now.AddDate(0, 0, 5)
	due, err = g.Due()
	require.NoError(t, err)
	assert.True(t, due)

	require.NoError(t, g.MarkSent(now))
	due, err = g.Due()
	require.NoError(t, err)
	assert.False(t, due)

	// disabled generator is never due
	g.cfg.Enabled = false
	due, err = g.Due()
	require.NoError(t, err)
	assert.False(t, due)
}

func TestGeneratorGenerateEmptyState(t *testing.T) {
	dir := t.TempDir()
	reported, err := outcome.OpenReportedStore(filepath.Join(dir, "reported.json"))
	require.NoError(t, err)

	g := NewGenerator(filepath.Join(dir, "missing.jsonl"), reported,
		filepath.Join(dir, "summary_state.json"),
		config.SummaryConfig{Enabled: true, IntervalDays: 7}, nil)

	rep, err := g.Generate()
	require.NoError(t, err)
	assert.Zero(t, rep.Current.Scanned)
	assert.NotEmpty(t, rep.Render())
}