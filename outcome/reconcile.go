package outcome

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/reddit"
)

// StatusChecker fetches the current visible state of a reported item.
type StatusChecker interface {
	CheckStatus(ctx context.Context, fullname string) (reddit.LiveStatus, error)
}

// Stats summarizes one reconciliation run.
type Stats struct {
	Checked        int
	Removed        int
	Approved       int
	StillPending   int
	Errors         int
	Pruned         int
	FalsePositives int
}

// Reconciler resolves pending reports by probing each item's live state.
// A removed or vanished item means the moderators agreed; a still-readable
// item past the maturation window means they did not.
type Reconciler struct {
	reported *ReportedStore
	fp       *FalsePositiveStore
	checker  StatusChecker
	cfg      config.OutcomeConfig
	logger   *zap.SugaredLogger

	now func() time.Time
}

// NewReconciler creates the reconciler.
func NewReconciler(reported *ReportedStore, fp *FalsePositiveStore, checker StatusChecker, cfg config.OutcomeConfig, logger *zap.SugaredLogger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Reconciler{
		reported: reported,
		fp:       fp,
		checker:  checker,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run reconciles every matured pending report, then prunes old resolved
// records. Per-item errors keep the record pending for the next run.
func (r *Reconciler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	now := r.now()
	maturation := time.Duration(r.cfg.MaturationHours) * time.Hour

	for _, rec := range r.reported.Pending() {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if now.Sub(rec.ReportedAt) < maturation {
			stats.StillPending++
			continue
		}

		status, err := r.checker.CheckStatus(ctx, rec.CommentID)
		if err != nil {
			r.logger.Warnw("Status check failed, keeping pending",
				"fullname", rec.CommentID, "error", err)
			stats.Errors++
			continue
		}
		stats.Checked++

		switch status {
		case reddit.StatusRemoved, reddit.StatusNotFound:
			// a vanished item counts as removed: deletion and removal are
			// indistinguishable from outside and both end the report
			if _, err := r.reported.SetOutcome(rec.CommentID, OutcomeRemoved, now); err != nil {
				return stats, err
			}
			stats.Removed++
		case reddit.StatusReadable:
			if _, err := r.reported.SetOutcome(rec.CommentID, OutcomeApproved, now); err != nil {
				return stats, err
			}
			stats.Approved++
			if err := r.recordFalsePositive(rec, now); err != nil {
				return stats, err
			}
			stats.FalsePositives++
		}
	}

	if r.cfg.ResolvedMaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -r.cfg.ResolvedMaxAgeDays)
		pruned, err := r.reported.PruneResolved(cutoff)
		if err != nil {
			return stats, err
		}
		stats.Pruned = pruned
	}

	r.logger.Infow("Reconciliation complete",
		"checked", stats.Checked,
		"removed", stats.Removed,
		"approved", stats.Approved,
		"still_pending", stats.StillPending,
		"errors", stats.Errors,
		"pruned", stats.Pruned,
	)
	return stats, nil
}

// ApplyModlog resolves reported items directly from moderation log actions
// and journals each observed decision. Returns the number of records whose
// outcome changed.
func (r *Reconciler) ApplyModlog(actions []reddit.ModAction, log *OutcomeLog) (int, error) {
	changed := 0
	now := r.now()

	for _, a := range actions {
		status := reddit.ClassifyModAction(a.Action)
		if status == "" || a.TargetFullname == "" {
			continue
		}
		if !r.reported.Has(a.TargetFullname) {
			continue
		}

		if log != nil {
			fresh, err := log.Append(OutcomeEntry{
				Fullname:   a.TargetFullname,
				Status:     status,
				Action:     a.Action,
				Moderator:  a.Moderator,
				CreatedUTC: a.CreatedUTC.Unix(),
				RecordedAt: now,
			})
			if err != nil {
				return changed, err
			}
			if !fresh {
				continue
			}
		}

		updated, err := r.reported.SetOutcome(a.TargetFullname, status, now)
		if err != nil {
			return changed, err
		}
		if updated {
			changed++
			if status == OutcomeApproved {
				for _, rec := range r.reported.All() {
					if rec.CommentID == a.TargetFullname {
						if err := r.recordFalsePositive(rec, now); err != nil {
							return changed, err
						}
						break
					}
				}
			}
		}
	}
	return changed, nil
}

// Accuracy returns removed/(removed+approved) over all resolved reports, or
// 0 when nothing is resolved yet.
func (r *Reconciler) Accuracy() float64 {
	removed, approved := 0, 0
	for _, rec := range r.reported.All() {
		switch rec.Outcome {
		case OutcomeRemoved:
			removed++
		case OutcomeApproved:
			approved++
		}
	}
	if removed+approved == 0 {
		return 0
	}
	return float64(removed) / float64(removed+approved)
}

func (r *Reconciler) recordFalsePositive(rec ReportedRecord, now time.Time) error {
	if r.fp == nil {
		return nil
	}
	return r.fp.Add(FalsePositiveRecord{
		CommentID:  rec.CommentID,
		Permalink:  rec.Permalink,
		Text:       rec.Text,
		Reason:     rec.Reason,
		Score:      rec.Score,
		ReportedAt: rec.ReportedAt,
		ResolvedAt: now,
	})
}
