package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/modsieve/modsieve/arbiter"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/outcome"
	"github.com/modsieve/modsieve/policy"
	"github.com/modsieve/modsieve/prefilter"
	"github.com/modsieve/modsieve/reddit"
)

// scanLoop polls each subreddit on the configured interval. Poll failures
// back off exponentially and recover without restarting the process.
func (p *Pipeline) scanLoop(ctx context.Context) error {
	interval := time.Duration(p.cfg.Scan.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // keep retrying forever
	bo.MaxInterval = 10 * time.Minute

	for {
		if err := p.scanOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.NextBackOff()
			p.logger.Warnw("Scan failed, backing off", "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// scanOnce fetches and processes one batch per subreddit. Per-item failures
// are isolated; only fetch failures propagate to the backoff.
func (p *Pipeline) scanOnce(ctx context.Context) error {
	limit := p.cfg.Scan.Limit
	if limit <= 0 {
		limit = 25
	}

	// spread the item work across the poll interval so bursts of new
	// comments do not burst API calls
	var throttle time.Duration
	if p.cfg.Scan.IntervalSeconds > 0 {
		throttle = time.Duration(p.cfg.Scan.IntervalSeconds) * time.Second / time.Duration(limit)
	}

	for _, sub := range p.cfg.Reddit.Subreddits {
		items, err := p.source.FetchNewComments(ctx, sub, limit)
		if err != nil {
			return errors.Wrapf(err, "failed to scan r/%s", sub)
		}

		// oldest first, so a crash resumes where it left off
		for i := len(items) - 1; i >= 0; i-- {
			item := items[i]
			if p.alreadyHandled(item.Fullname) {
				continue
			}

			if err := p.processItem(ctx, item); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Errorw("Failed to process item",
					"fullname", item.Fullname, "error", err)
			}

			if throttle > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(throttle):
				}
			}
		}
	}
	return nil
}

func (p *Pipeline) alreadyHandled(fullname string) bool {
	return p.seen.Seen(fullname) || p.reported.Has(fullname) || p.benign.Has(fullname)
}

func (p *Pipeline) reportsEnabled() bool {
	return p.cfg.Report.Enabled && p.cfg.Report.As != "none"
}

// processItem runs one item through prefilter, arbiter, and policy, then
// acts and records the outcome.
func (p *Pipeline) processItem(ctx context.Context, item reddit.Item) error {
	dec := p.pre.Evaluate(ctx, item.Body, item.IsTopLevel())

	entry := outcome.ScanEntry{
		Fullname:   item.Fullname,
		Action:     string(dec.Action),
		TopScore:   dec.TopScore(),
		Confidence: dec.Confidence,
		Trigger:    dec.Trigger,
		SeenAt:     time.Now().UTC(),
	}

	if dec.Action == prefilter.Skip {
		return p.seen.Record(entry)
	}

	p.logger.Infow("Escalating item",
		"fullname", item.Fullname,
		"action", dec.Action,
		"trigger", dec.Trigger,
		"top_score", dec.TopScore(),
		"confidence", dec.Confidence,
	)

	verdict, err := p.arbitrate(ctx, item, dec)
	if err != nil && !errors.Is(err, errors.ErrModelUnavailable) {
		return err
	}
	entry.Verdict = string(verdict.Verdict)

	action := p.pol.Decide(verdict.Verdict, dec.Scores, dec.Trigger)

	switch {
	case action.Remove || (action.Report && p.reportsEnabled()):
		if err := p.act(ctx, item, dec, verdict, action); err != nil {
			return err
		}
	default:
		now := time.Now().UTC()
		if err := p.benign.Add(outcome.BenignRecord{
			CommentID:  item.Fullname,
			Permalink:  item.Permalink,
			Text:       item.Body,
			Reason:     verdict.Reason,
			Score:      dec.TopScore(),
			Scores:     dec.Scores.Scores,
			Trigger:    dec.Trigger,
			IsTopLevel: item.IsTopLevel(),
			SeenAt:     now,
			Timestamp:  now.Unix(),
		}); err != nil {
			return err
		}
	}

	return p.seen.Record(entry)
}

// arbitrate builds the arbiter item, including parent context for replies.
func (p *Pipeline) arbitrate(ctx context.Context, item reddit.Item, dec prefilter.Decision) (*arbiter.Decision, error) {
	parentText := ""
	if !item.IsTopLevel() && item.ParentID != "" {
		text, err := p.source.FetchParentText(ctx, item.ParentID)
		if err != nil {
			// parent context is a nice-to-have; judge without it
			p.logger.Debugw("Could not fetch parent", "parent", item.ParentID, "error", err)
		} else {
			parentText = text
		}
	}

	return p.arb.Decide(ctx, arbiter.Item{
		ID:          item.Fullname,
		Text:        item.Body,
		PostTitle:   item.LinkTitle,
		ParentText:  parentText,
		IsTopLevel:  item.IsTopLevel(),
		HasQuoted:   item.HasQuotedText(),
		Scores:      dec.Scores,
		Trigger:     dec.Trigger,
		TopScore:    dec.TopScore(),
		FiredLabels: dec.Fired,
	})
}

// act performs the decided report/remove and records it.
func (p *Pipeline) act(ctx context.Context, item reddit.Item, dec prefilter.Decision, verdict *arbiter.Decision, action policy.Action) error {
	reason := p.renderReason(verdict.Reason, dec.Confidence)

	if action.Remove {
		if err := p.actuate.Remove(ctx, item.Fullname, false, p.cfg.DryRun); err != nil {
			return err
		}
	}
	if err := p.actuate.Report(ctx, item.Fullname, reason, p.cfg.DryRun); err != nil {
		// a removal already happened; still record what we did
		p.logger.Errorw("Report failed after action", "fullname", item.Fullname, "error", err)
	}

	if err := p.reported.Add(outcome.ReportedRecord{
		CommentID:  item.Fullname,
		Permalink:  item.Permalink,
		Text:       item.Body,
		Reason:     reason,
		Score:      dec.TopScore(),
		Trigger:    dec.Trigger,
		IsTopLevel: item.IsTopLevel(),
		Removed:    action.Remove,
		ReportedAt: time.Now().UTC(),
		Outcome:    outcome.OutcomePending,
	}); err != nil {
		return err
	}

	disposition := "reported"
	if action.Remove {
		disposition = "removed (" + action.RemoveBasis + ")"
	}
	p.notif.Item(ctx, fmt.Sprintf("%s %s: %s\nhttps://reddit.com%s",
		disposition, item.Fullname, reason, item.Permalink))
	return nil
}

// renderReason fills the report reason template: {verdict} is the arbiter's
// one-line reason, {confidence} the score bucket. A configured rule bucket
// prefixes the reason so reports land under the right subreddit rule.
func (p *Pipeline) renderReason(verdictReason, confidence string) string {
	tmpl := p.cfg.Report.ReasonTemplate
	if tmpl == "" {
		tmpl = "AI: {verdict} ({confidence})"
	}
	out := strings.ReplaceAll(tmpl, "{verdict}", verdictReason)
	if confidence == "" {
		confidence = "unrated"
	}
	out = strings.ReplaceAll(out, "{confidence}", confidence)
	if p.cfg.Report.RuleBucket != "" {
		out = p.cfg.Report.RuleBucket + ": " + out
	}
	return out
}
