// Package outcome persists what the pipeline did and reconciles it against
// what the human moderators eventually decided.
package outcome

import "time"

// Report outcomes. Pending means no moderator has acted yet.
const (
	OutcomePending  = "pending"
	OutcomeRemoved  = "removed"
	OutcomeApproved = "approved"
)

// ReportedRecord is one filed report awaiting (or past) moderator review.
type ReportedRecord struct {
	CommentID  string     `json:"comment_id"` // fullname (t1_/t3_)
	Permalink  string     `json:"permalink"`
	Text       string     `json:"text"`
	Reason     string     `json:"reason"`
	Score      float64    `json:"detoxify_score"`
	Trigger    string     `json:"trigger,omitempty"`
	IsTopLevel bool       `json:"is_top_level"`
	Removed    bool       `json:"removed,omitempty"` // pipeline auto-removed it
	ReportedAt time.Time  `json:"reported_at"`
	Outcome    string     `json:"outcome"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
}

// Resolved reports whether a moderator decision is recorded.
func (r ReportedRecord) Resolved() bool {
	return r.Outcome == OutcomeRemoved || r.Outcome == OutcomeApproved
}

// BenignRecord is an item the arbiter cleared after escalation. The full
// score map and the escalation trigger are kept as calibration signal for
// threshold tuning, bounded by the store's age eviction.
type BenignRecord struct {
	CommentID  string             `json:"comment_id"`
	Permalink  string             `json:"permalink"`
	Text       string             `json:"text"`
	Reason     string             `json:"llm_reason"`
	Score      float64            `json:"detoxify_score"`
	Scores     map[string]float64 `json:"detoxify_scores,omitempty"`
	Trigger    string             `json:"prefilter_trigger,omitempty"`
	IsTopLevel bool               `json:"is_top_level"`
	SeenAt     time.Time          `json:"analyzed_at"`
	Timestamp  int64              `json:"timestamp"`
}

// FalsePositiveRecord is a report a moderator explicitly approved: the
// pipeline was wrong. These feed threshold tuning.
type FalsePositiveRecord struct {
	CommentID  string    `json:"comment_id"`
	Permalink  string    `json:"permalink"`
	Text       string    `json:"text"`
	Reason     string    `json:"reason"`
	Score      float64   `json:"detoxify_score"`
	ReportedAt time.Time `json:"reported_at"`
	ResolvedAt time.Time `json:"resolved_at"`
}
