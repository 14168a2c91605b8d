package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/modsieve/modsieve/outcome"
)

// startupRefresh runs the catch-up work a restart owes: apply whatever the
// moderators did while we were down, then check whether a summary is due.
func (p *Pipeline) startupRefresh(ctx context.Context) {
	if _, err := p.RefreshModlog(ctx); err != nil {
		p.logger.Warnw("Startup modlog refresh failed", "error", err)
	}
	p.maybeSendSummary(ctx, false)
}

// startBackground launches the periodic jobs and returns a stop function.
func (p *Pipeline) startBackground(ctx context.Context) func() {
	bgCtx, cancel := context.WithCancel(ctx)

	go p.reconcileLoop(bgCtx)

	c := cron.New(cron.WithLocation(time.UTC))

	hour := p.cfg.Outcome.DailyRefreshHourUTC
	if _, err := c.AddFunc(fmt.Sprintf("0 %d * * *", hour), func() {
		if _, err := p.RefreshModlog(bgCtx); err != nil {
			p.logger.Warnw("Daily modlog refresh failed", "error", err)
		}
		p.maybeSendSummary(bgCtx, false)
	}); err != nil {
		p.logger.Errorw("Failed to schedule daily refresh", "error", err)
	}

	if _, err := c.AddFunc("0 0 * * *", func() {
		p.postDailyStats(bgCtx)
	}); err != nil {
		p.logger.Errorw("Failed to schedule daily stats", "error", err)
	}

	c.Start()
	return func() {
		cancel()
		<-c.Stop().Done()
	}
}

// reconcileLoop runs the outcome reconciler on a jittered interval so many
// deployments do not probe the API in lockstep.
func (p *Pipeline) reconcileLoop(ctx context.Context) {
	base := time.Duration(p.cfg.Outcome.ReconcileIntervalHours) * time.Hour
	if base <= 0 {
		base = 12 * time.Hour
	}
	jitter := time.Duration(p.cfg.Outcome.JitterMinutes) * time.Minute

	for {
		wait := base
		if jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(2*jitter))) - jitter
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if _, err := p.RunReconcile(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warnw("Reconciliation failed", "error", err)
		}
	}
}

// RunReconcile resolves matured pending reports against the live API.
func (p *Pipeline) RunReconcile(ctx context.Context) (outcome.Stats, error) {
	return p.reconciler.Run(ctx)
}

// RefreshModlog pulls recent moderation log pages for every subreddit and
// applies them to the reported ledger. Returns the number of reports whose
// outcome changed.
func (p *Pipeline) RefreshModlog(ctx context.Context) (int, error) {
	lookback := time.Duration(p.cfg.Outcome.ModlogLookbackDays) * 24 * time.Hour
	since := time.Now().Add(-lookback)
	limit := p.cfg.Outcome.ModlogLimit
	if limit <= 0 {
		limit = 500
	}
	delay := time.Duration(p.cfg.Outcome.ModlogDelayMs) * time.Millisecond

	total := 0
	for _, sub := range p.cfg.Reddit.Subreddits {
		actions, err := p.modlog.FetchModlog(ctx, sub, limit, since)
		if err != nil {
			return total, err
		}

		changed, err := p.reconciler.ApplyModlog(actions, p.outcomeLog)
		if err != nil {
			return total, err
		}
		total += changed

		p.logger.Infow("Modlog refresh applied",
			"subreddit", sub, "entries", len(actions), "changed", changed)

		if delay > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return total, nil
}

// SendSummary generates and posts the periodic report immediately.
func (p *Pipeline) SendSummary(ctx context.Context) error {
	rep, err := p.summgen.Generate()
	if err != nil {
		return err
	}
	p.notif.Summary(ctx, rep.Render())
	return p.summgen.MarkSent(time.Now())
}

// SummaryDue reports whether the interval gate allows a summary now.
func (p *Pipeline) SummaryDue() (bool, error) {
	return p.summgen.Due()
}

// maybeSendSummary sends the summary only when the interval gate says so.
func (p *Pipeline) maybeSendSummary(ctx context.Context, force bool) {
	if !force {
		due, err := p.summgen.Due()
		if err != nil {
			p.logger.Warnw("Summary gate check failed", "error", err)
			return
		}
		if !due {
			return
		}
	}
	if err := p.SendSummary(ctx); err != nil {
		p.logger.Warnw("Summary send failed", "error", err)
	}
}

// postDailyStats logs and posts the prefilter counters once a day.
func (p *Pipeline) postDailyStats(ctx context.Context) {
	c := p.pre.Snapshot()
	p.logger.Infow("Daily scan stats",
		"scanned", c.Scanned,
		"pattern_hits", c.PatternHits,
		"benign_skips", c.BenignSkips,
		"scored", c.Scored,
		"escalated", c.Escalated,
		"skipped", c.Skipped,
	)
	p.notif.Item(ctx, fmt.Sprintf(
		"Daily stats: %d scanned, %d escalated (%d pattern), %d skipped",
		c.Scanned, c.Escalated, c.PatternHits, c.Skipped))
}
