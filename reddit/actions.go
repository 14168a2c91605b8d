package reddit

import (
	"context"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/modsieve/modsieve/errors"
)

// Report files a report against an item. In dry-run mode the call is logged
// and skipped.
func (c *Client) Report(ctx context.Context, fullname, reason string, dryRun bool) error {
	if dryRun {
		c.logger.Infow("DRY RUN: would report", "fullname", fullname, "reason", reason)
		return nil
	}

	// the report endpoint caps reasons at 100 chars; cut on rune
	// boundaries so a multi-byte character is never split
	if utf8.RuneCountInString(reason) > 100 {
		reason = string([]rune(reason)[:100])
	}

	form := url.Values{}
	form.Set("thing_id", fullname)
	form.Set("reason", reason)
	form.Set("api_type", "json")

	if _, err := c.do(ctx, http.MethodPost, "/api/report", form); err != nil {
		return errors.Wrapf(err, "failed to report %s", fullname)
	}
	c.logger.Infow("Reported item", "fullname", fullname, "reason", reason)
	return nil
}

// Remove removes an item as a moderator. spam routes it to the spam queue.
func (c *Client) Remove(ctx context.Context, fullname string, spam, dryRun bool) error {
	if dryRun {
		c.logger.Infow("DRY RUN: would remove", "fullname", fullname, "spam", spam)
		return nil
	}

	form := url.Values{}
	form.Set("id", fullname)
	if spam {
		form.Set("spam", "true")
	} else {
		form.Set("spam", "false")
	}

	if _, err := c.do(ctx, http.MethodPost, "/api/remove", form); err != nil {
		return errors.Wrapf(err, "failed to remove %s", fullname)
	}
	c.logger.Infow("Removed item", "fullname", fullname, "spam", spam)
	return nil
}
