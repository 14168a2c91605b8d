// Package summary computes the periodic moderation report: window stats over
// the scan log and the reported ledger, with deltas against the previous
// window.
package summary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/modsieve/modsieve/outcome"
)

// WindowStats aggregates one reporting window.
type WindowStats struct {
	Start time.Time
	End   time.Time

	Scanned          int
	AvgScoreAll      float64
	Reported         int
	AvgScoreReported float64
	Removed          int
	Approved         int
	// LeftUp counts unresolved reports past the decision-lag cutoff: the
	// moderators have had their look and left the item standing
	LeftUp  int
	Pending int

	// Alignment is removed/(removed+approved): how often the moderators
	// agreed with the pipeline's reports
	Alignment float64
}

// Compute aggregates scan entries and report records falling inside
// [start, end). Unresolved reports filed before lagCutoff count as left-up
// rather than pending.
func Compute(entries []outcome.ScanEntry, reports []outcome.ReportedRecord, start, end, lagCutoff time.Time) WindowStats {
	w := WindowStats{Start: start, End: end}

	var sumAll float64
	for _, e := range entries {
		if e.SeenAt.Before(start) || !e.SeenAt.Before(end) {
			continue
		}
		w.Scanned++
		sumAll += e.TopScore
	}
	if w.Scanned > 0 {
		w.AvgScoreAll = sumAll / float64(w.Scanned)
	}

	var sumReported float64
	for _, r := range reports {
		if r.ReportedAt.Before(start) || !r.ReportedAt.Before(end) {
			continue
		}
		w.Reported++
		sumReported += r.Score
		switch {
		case r.Outcome == outcome.OutcomeRemoved:
			w.Removed++
		case r.Outcome == outcome.OutcomeApproved:
			w.Approved++
		case r.ReportedAt.Before(lagCutoff):
			w.LeftUp++
		default:
			w.Pending++
		}
	}
	if w.Reported > 0 {
		w.AvgScoreReported = sumReported / float64(w.Reported)
	}
	if w.Removed+w.Approved > 0 {
		w.Alignment = float64(w.Removed) / float64(w.Removed+w.Approved)
	}

	return w
}

// deltaPct renders the change from prev to cur. A zero baseline with any
// growth renders as +∞% rather than dividing by zero.
func deltaPct(cur, prev float64) string {
	switch {
	case prev == 0 && cur == 0:
		return "±0.0%"
	case prev == 0:
		return "+∞%"
	}

	pct := (cur - prev) / prev * 100
	if math.Abs(pct) < 0.05 {
		return "±0.0%"
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

// Report is a rendered summary over one window with previous-window deltas.
type Report struct {
	Current  WindowStats
	Previous WindowStats
}

// dateSpan renders the window as "Jan 2 – Jan 9 2026".
func dateSpan(start, end time.Time) string {
	if start.Year() == end.Year() {
		return fmt.Sprintf("%s – %s %d", start.Format("Jan 2"), end.Format("Jan 2"), end.Year())
	}
	return fmt.Sprintf("%s – %s", start.Format("Jan 2 2006"), end.Format("Jan 2 2006"))
}

// Render formats the report as the notification message.
func (r Report) Render() string {
	cur, prev := r.Current, r.Previous

	var b strings.Builder
	fmt.Fprintf(&b, "**Moderation summary %s**\n", dateSpan(cur.Start, cur.End))
	fmt.Fprintf(&b, "Scanned: %d (%s)\n", cur.Scanned, deltaPct(float64(cur.Scanned), float64(prev.Scanned)))
	fmt.Fprintf(&b, "Avg toxicity: %.3f (%s)\n", cur.AvgScoreAll, deltaPct(cur.AvgScoreAll, prev.AvgScoreAll))
	fmt.Fprintf(&b, "Reported: %d (%s), avg score %.3f\n",
		cur.Reported, deltaPct(float64(cur.Reported), float64(prev.Reported)), cur.AvgScoreReported)
	fmt.Fprintf(&b, "Outcomes: %d removed, %d approved, %d left up, %d pending\n",
		cur.Removed, cur.Approved, cur.LeftUp, cur.Pending)
	if cur.Removed+cur.Approved > 0 {
		fmt.Fprintf(&b, "Mod alignment: %.0f%% (%s)\n",
			cur.Alignment*100, deltaPct(cur.Alignment, prev.Alignment))
	} else {
		b.WriteString("Mod alignment: no resolved reports yet\n")
	}
	return b.String()
}
