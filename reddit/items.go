package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/modsieve/modsieve/errors"
)

// Fullname prefixes: t1_ comments, t3_ posts.
const (
	KindComment = "t1"
	KindPost    = "t3"
)

// Item is one scannable piece of content.
type Item struct {
	Fullname   string
	ID         string
	Author     string
	Body       string
	Permalink  string
	Subreddit  string
	ParentID   string
	LinkID     string
	LinkTitle  string
	CreatedUTC time.Time
}

// IsTopLevel reports whether the comment replies directly to the post.
func (it Item) IsTopLevel() bool {
	return strings.HasPrefix(it.ParentID, KindPost+"_")
}

// HasQuotedText reports whether any line is a markdown quote. Quoted lines
// usually repeat someone else's words; the arbiter is warned about them.
// Spoiler markup (">!") is not a quote.
func (it Item) HasQuotedText() bool {
	for _, line := range strings.Split(it.Body, "\n") {
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, ">") && !strings.HasPrefix(trim, ">!") {
			return true
		}
	}
	return false
}

// listing is the generic reddit listing envelope.
type listing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

type commentData struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Author            string   `json:"author"`
	Body              string   `json:"body"`
	Permalink         string   `json:"permalink"`
	Subreddit         string   `json:"subreddit"`
	ParentID          string   `json:"parent_id"`
	LinkID            string   `json:"link_id"`
	LinkTitle         string   `json:"link_title"`
	CreatedUTC        float64  `json:"created_utc"`
	BannedBy          *string  `json:"banned_by"`
	RemovedByCategory *string  `json:"removed_by_category"`
}

func (d commentData) toItem() Item {
	return Item{
		Fullname:   d.Name,
		ID:         d.ID,
		Author:     d.Author,
		Body:       d.Body,
		Permalink:  d.Permalink,
		Subreddit:  d.Subreddit,
		ParentID:   d.ParentID,
		LinkID:     d.LinkID,
		LinkTitle:  d.LinkTitle,
		CreatedUTC: time.Unix(int64(d.CreatedUTC), 0).UTC(),
	}
}

// FetchNewComments returns the newest comments in a subreddit, newest first.
func (c *Client) FetchNewComments(ctx context.Context, subreddit string, limit int) ([]Item, error) {
	form := url.Values{}
	form.Set("limit", strconv.Itoa(limit))
	form.Set("raw_json", "1")

	body, err := c.do(ctx, http.MethodGet, "/r/"+url.PathEscape(subreddit)+"/comments", form)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch comments for r/%s", subreddit)
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, errors.Wrap(err, "malformed comment listing")
	}

	items := make([]Item, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != KindComment {
			continue
		}
		var d commentData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			c.logger.Warnw("Skipping unparseable comment", "error", err)
			continue
		}
		items = append(items, d.toItem())
	}
	return items, nil
}

// FetchParentText returns the body (or title, for a post parent) of an
// item's parent, for arbiter context.
func (c *Client) FetchParentText(ctx context.Context, parentFullname string) (string, error) {
	form := url.Values{}
	form.Set("id", parentFullname)
	form.Set("raw_json", "1")

	body, err := c.do(ctx, http.MethodGet, "/api/info", form)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch parent %s", parentFullname)
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return "", errors.Wrap(err, "malformed info listing")
	}
	if len(l.Data.Children) == 0 {
		return "", errors.WithStack(errors.ErrNotFound)
	}

	child := l.Data.Children[0]
	if child.Kind == KindPost {
		var d struct {
			Title    string `json:"title"`
			Selftext string `json:"selftext"`
		}
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return "", errors.Wrap(err, "malformed post data")
		}
		if d.Selftext != "" {
			return d.Selftext, nil
		}
		return d.Title, nil
	}

	var d commentData
	if err := json.Unmarshal(child.Data, &d); err != nil {
		return "", errors.Wrap(err, "malformed comment data")
	}
	return d.Body, nil
}

// LiveStatus is the current visible state of a reported item.
type LiveStatus string

const (
	// StatusReadable means the item is still publicly visible
	StatusReadable LiveStatus = "readable"
	// StatusRemoved means a moderator removed it or it was deleted
	StatusRemoved LiveStatus = "removed"
	// StatusNotFound means the item no longer resolves at all
	StatusNotFound LiveStatus = "not_found"
)

// CheckStatus fetches an item and classifies its visible state. Removal
// placeholders ("[removed]", "[deleted]") and mod-removal markers count as
// removed; an item the API cannot find counts as not found.
func (c *Client) CheckStatus(ctx context.Context, fullname string) (LiveStatus, error) {
	form := url.Values{}
	form.Set("id", fullname)
	form.Set("raw_json", "1")

	body, err := c.do(ctx, http.MethodGet, "/api/info", form)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return StatusNotFound, nil
		}
		return "", err
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return "", errors.Wrap(err, "malformed info listing")
	}
	if len(l.Data.Children) == 0 {
		return StatusNotFound, nil
	}

	var d commentData
	if err := json.Unmarshal(l.Data.Children[0].Data, &d); err != nil {
		return "", errors.Wrap(err, "malformed item data")
	}

	if d.BannedBy != nil || d.RemovedByCategory != nil {
		return StatusRemoved, nil
	}
	switch d.Body {
	case "[removed]", "[deleted]":
		return StatusRemoved, nil
	}
	if d.Author == "[deleted]" && d.Body == "" {
		return StatusRemoved, nil
	}
	return StatusReadable, nil
}
