package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/modsieve/modsieve/errors"
)

// ModAction is one moderation log entry.
type ModAction struct {
	Action         string
	TargetFullname string
	Moderator      string
	Details        string
	CreatedUTC     time.Time
}

// Modlog action families. Everything else (locks, flair edits, bans) is
// irrelevant to report outcomes and classifies as neither.
var (
	approveActions = map[string]bool{
		"approvecomment": true,
		"approvelink":    true,
	}
	removeActions = map[string]bool{
		"removecomment":    true,
		"removelink":       true,
		"spamcomment":      true,
		"spamlink":         true,
		"moderator_remove": true,
		"remove":           true,
	}
)

// ClassifyModAction maps a modlog action name onto a report outcome:
// "approved", "removed", or "" when the action says nothing about outcomes.
func ClassifyModAction(action string) string {
	switch {
	case approveActions[action]:
		return "approved"
	case removeActions[action]:
		return "removed"
	default:
		return ""
	}
}

// FetchModlog pages through the subreddit moderation log, newest first,
// stopping at the lookback cutoff or the entry limit.
func (c *Client) FetchModlog(ctx context.Context, subreddit string, limit int, since time.Time) ([]ModAction, error) {
	var actions []ModAction
	after := ""

	for len(actions) < limit {
		pageSize := limit - len(actions)
		if pageSize > 100 {
			pageSize = 100
		}

		form := url.Values{}
		form.Set("limit", strconv.Itoa(pageSize))
		form.Set("raw_json", "1")
		if after != "" {
			form.Set("after", after)
		}

		body, err := c.do(ctx, http.MethodGet, "/r/"+url.PathEscape(subreddit)+"/about/log", form)
		if err != nil {
			return actions, errors.Wrapf(err, "failed to fetch modlog for r/%s", subreddit)
		}

		var l listing
		if err := json.Unmarshal(body, &l); err != nil {
			return actions, errors.Wrap(err, "malformed modlog listing")
		}
		if len(l.Data.Children) == 0 {
			break
		}

		reachedCutoff := false
		for _, child := range l.Data.Children {
			var d struct {
				Action         string  `json:"action"`
				TargetFullname string  `json:"target_fullname"`
				Mod            string  `json:"mod"`
				Details        string  `json:"details"`
				CreatedUTC     float64 `json:"created_utc"`
			}
			if err := json.Unmarshal(child.Data, &d); err != nil {
				c.logger.Warnw("Skipping unparseable modlog entry", "error", err)
				continue
			}

			createdAt := time.Unix(int64(d.CreatedUTC), 0).UTC()
			if createdAt.Before(since) {
				reachedCutoff = true
				break
			}

			actions = append(actions, ModAction{
				Action:         d.Action,
				TargetFullname: d.TargetFullname,
				Moderator:      d.Mod,
				Details:        d.Details,
				CreatedUTC:     createdAt,
			})
		}

		if reachedCutoff || l.Data.After == "" {
			break
		}
		after = l.Data.After
	}

	return actions, nil
}
