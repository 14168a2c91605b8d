// Package pipeline wires the stages together and runs them: the foreground
// scan loop plus the background reconciliation, modlog refresh, and summary
// jobs.
package pipeline

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modsieve/modsieve/arbiter"
	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/notify"
	"github.com/modsieve/modsieve/outcome"
	"github.com/modsieve/modsieve/policy"
	"github.com/modsieve/modsieve/prefilter"
	"github.com/modsieve/modsieve/reddit"
	"github.com/modsieve/modsieve/score"
	"github.com/modsieve/modsieve/summary"
)

// Source supplies scannable items and their context.
type Source interface {
	FetchNewComments(ctx context.Context, subreddit string, limit int) ([]reddit.Item, error)
	FetchParentText(ctx context.Context, parentFullname string) (string, error)
}

// Actuator performs moderation actions.
type Actuator interface {
	Report(ctx context.Context, fullname, reason string, dryRun bool) error
	Remove(ctx context.Context, fullname string, spam, dryRun bool) error
}

// ModlogFetcher reads the subreddit moderation log.
type ModlogFetcher interface {
	FetchModlog(ctx context.Context, subreddit string, limit int, since time.Time) ([]reddit.ModAction, error)
}

// Arbiter judges escalated items.
type Arbiter interface {
	Decide(ctx context.Context, item arbiter.Item) (*arbiter.Decision, error)
}

// Pipeline is the assembled moderation system.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.SugaredLogger

	source  Source
	actuate Actuator
	modlog  ModlogFetcher

	pre     *prefilter.Prefilter
	arb     Arbiter
	pol     *policy.Engine
	notif   *notify.Notifier
	summgen *summary.Generator

	seen       *outcome.SeenSet
	reported   *outcome.ReportedStore
	benign     *outcome.BenignStore
	outcomeLog *outcome.OutcomeLog
	reconciler *outcome.Reconciler
}

// Build assembles the full pipeline from configuration. db may be nil, which
// disables LLM usage tracking only.
func Build(cfg *config.Config, db *sql.DB, logger *zap.SugaredLogger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	// every process gets a run id so overlapping deployments can be told
	// apart in aggregated logs
	logger = logger.With("run_id", uuid.NewString())

	client := reddit.NewClient(cfg.Reddit, logger.Named("reddit"))

	agg := score.NewAggregator(cfg.Scoring, logger.Named("score"))
	pre := prefilter.New(agg, cfg.Scoring, logger.Named("prefilter"))

	registry := arbiter.NewRegistry(
		arbiter.NewGeminiBackend(cfg.Arbiter.Gemini),
		arbiter.NewOpenRouterBackend(cfg.Arbiter.OpenRouter),
	)
	arb, err := arbiter.New(cfg.Arbiter, registry, arbiter.NewUsageTracker(db), logger.Named("arbiter"))
	if err != nil {
		return nil, err
	}

	seen, err := outcome.OpenSeenSet(cfg.State.ScanLogPath)
	if err != nil {
		return nil, err
	}
	reported, err := outcome.OpenReportedStore(cfg.State.ReportedPath)
	if err != nil {
		return nil, err
	}
	benign, err := outcome.OpenBenignStore(cfg.State.BenignPath,
		time.Duration(cfg.State.BenignMaxAgeDays)*24*time.Hour)
	if err != nil {
		return nil, err
	}
	fps, err := outcome.OpenFalsePositiveStore(cfg.State.FalsePositivesPath)
	if err != nil {
		return nil, err
	}
	outcomeLog, err := outcome.OpenOutcomeLog(cfg.State.OutcomesPath)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		source:     client,
		actuate:    client,
		modlog:     client,
		pre:        pre,
		arb:        arb,
		pol:        policy.New(cfg.Policy, agg.Descriptors(), logger.Named("policy")),
		notif:      notify.New(cfg.Notify, logger.Named("notify")),
		summgen:    summary.NewGenerator(cfg.State.ScanLogPath, reported, cfg.State.SummaryStatePath, cfg.Summary, logger.Named("summary")),
		seen:       seen,
		reported:   reported,
		benign:     benign,
		outcomeLog: outcomeLog,
		reconciler: outcome.NewReconciler(reported, fps, client, cfg.Outcome, logger.Named("reconcile")),
	}, nil
}

// Close releases the append-only logs.
func (p *Pipeline) Close() error {
	if err := p.seen.Close(); err != nil {
		return err
	}
	return p.outcomeLog.Close()
}

// Run starts the background jobs, performs the startup refresh, then runs
// the scan loop until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Infow("Pipeline starting",
		"subreddits", p.cfg.Reddit.Subreddits,
		"dry_run", p.cfg.DryRun,
	)

	p.startupRefresh(ctx)

	stopBackground := p.startBackground(ctx)
	defer stopBackground()

	return p.scanLoop(ctx)
}
