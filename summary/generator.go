package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/outcome"
)

// state is the persisted summary gate.
type state struct {
	LastSentAt time.Time `json:"last_sent_at"`
}

// Generator builds periodic reports from the scan log and reported ledger,
// gated by the persisted last-sent timestamp.
type Generator struct {
	scanLogPath string
	reported    *outcome.ReportedStore
	statePath   string
	cfg         config.SummaryConfig
	logger      *zap.SugaredLogger

	now func() time.Time
}

// NewGenerator creates a summary generator.
func NewGenerator(scanLogPath string, reported *outcome.ReportedStore, statePath string, cfg config.SummaryConfig, logger *zap.SugaredLogger) *Generator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Generator{
		scanLogPath: scanLogPath,
		reported:    reported,
		statePath:   statePath,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (g *Generator) loadState() (state, error) {
	var s state
	data, err := os.ReadFile(g.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, errors.Wrap(err, "failed to read summary state")
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errors.Wrap(err, "corrupt summary state")
	}
	return s, nil
}

// Due reports whether a full interval has elapsed since the last summary.
// A fresh deployment with no state is not due; the first interval must
// accumulate data first.
func (g *Generator) Due() (bool, error) {
	if !g.cfg.Enabled {
		return false, nil
	}
	s, err := g.loadState()
	if err != nil {
		return false, err
	}
	if s.LastSentAt.IsZero() {
		return false, g.MarkSent(g.now())
	}
	interval := time.Duration(g.cfg.IntervalDays) * 24 * time.Hour
	return g.now().Sub(s.LastSentAt) >= interval, nil
}

// Generate builds the report for the most recent complete window. The window
// ends DecisionLagHours in the past so freshly reported items have had time
// to collect moderator outcomes.
func (g *Generator) Generate() (*Report, error) {
	entries, err := outcome.ReadScanLog(g.scanLogPath)
	if err != nil {
		return nil, err
	}
	reports := g.reported.All()

	interval := time.Duration(g.cfg.IntervalDays) * 24 * time.Hour
	// the lag cutoff doubles as the window end: anything newer has not had
	// time to collect an outcome
	lagCutoff := g.now().Add(-time.Duration(g.cfg.DecisionLagHours) * time.Hour)
	end := lagCutoff
	start := end.Add(-interval)

	return &Report{
		Current:  Compute(entries, reports, start, end, lagCutoff),
		Previous: Compute(entries, reports, start.Add(-interval), start, lagCutoff),
	}, nil
}

// MarkSent persists the gate timestamp.
func (g *Generator) MarkSent(at time.Time) error {
	data, err := json.MarshalIndent(state{LastSentAt: at}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal summary state")
	}
	if err := os.MkdirAll(filepath.Dir(g.statePath), 0o755); err != nil {
		return errors.Wrap(err, "failed to create summary state directory")
	}
	if err := os.WriteFile(g.statePath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write summary state")
	}
	return nil
}
