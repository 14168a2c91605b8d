// Package policy turns the arbiter verdict and the scorer consensus into the
// concrete moderation action for one item.
package policy

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/arbiter"
	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/score"
)

// Action is the decided moderation outcome.
type Action struct {
	Report bool
	Remove bool
	// RemoveBasis explains what authorized the removal: "pattern:<rule>" or
	// "quorum:<n>"
	RemoveBasis string
	// Agreeing lists the scorers that passed their auto-remove minimums
	Agreeing []string
}

// Engine applies the consensus rules. Removal is strictly stronger than
// reporting: any removal also files a report so the modlog records why.
type Engine struct {
	cfg         config.PolicyConfig
	descriptors []score.Descriptor
	logger      *zap.SugaredLogger
}

// New creates a policy engine over the configured scorers.
func New(cfg config.PolicyConfig, descriptors []score.Descriptor, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{cfg: cfg, descriptors: descriptors, logger: logger}
}

// Decide computes the action for one item. trigger is the pattern rule that
// forced escalation, empty when the scorers sent the item.
func (e *Engine) Decide(verdict arbiter.Verdict, scores score.Map, trigger string) Action {
	action := Action{Report: verdict == arbiter.VerdictReport}

	if !e.cfg.AutoRemove {
		return action
	}

	if e.cfg.PatternAutoRemove && trigger != "" {
		action.Remove = true
		action.Report = true
		action.RemoveBasis = "pattern:" + trigger
		return action
	}

	agreeing := e.agreeingScorers(scores)
	if e.cfg.Quorum > 0 && len(agreeing) >= e.cfg.Quorum {
		action.Remove = true
		action.Report = true
		action.RemoveBasis = fmt.Sprintf("quorum:%d", len(agreeing))
		action.Agreeing = agreeing
	}
	return action
}

// agreeingScorers returns the scorers whose own label partition reaches their
// configured auto-remove minimum. Each scorer votes on its own labels only,
// so one model's spike can never satisfy two votes.
func (e *Engine) agreeingScorers(scores score.Map) []string {
	var agreeing []string
	for _, d := range e.descriptors {
		minimum, ok := e.cfg.ScorerMinimums[d.Name]
		if !ok {
			continue
		}
		if scores.MaxWithPrefix(d.Prefix) >= minimum {
			agreeing = append(agreeing, d.Name)
		}
	}
	sort.Strings(agreeing)
	return agreeing
}
