package arbiter

import (
	"database/sql"
	"time"
)

// UsageRecord is one LLM call written to the usage ledger.
type UsageRecord struct {
	OperationType     string
	ItemID            string
	ModelName         string
	Backend           string
	RequestTimestamp  time.Time
	ResponseTimestamp *time.Time
	TokensUsed        *int
	Success           bool
	ErrorMessage      *string
}

// UsageStats aggregates ledger rows over a time period.
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	UniqueModels       int     `json:"unique_models"`
}

// UsageTracker persists per-call LLM usage to the SQLite ledger. A nil
// tracker drops records silently, so callers never branch on its presence.
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a tracker over an open ledger database.
func NewUsageTracker(db *sql.DB) *UsageTracker {
	if db == nil {
		return nil
	}
	return &UsageTracker{db: db}
}

// Track records one LLM call.
func (t *UsageTracker) Track(rec *UsageRecord) error {
	if t == nil {
		return nil
	}

	query := `
		INSERT INTO llm_usage (
			operation_type, item_id, model_name, backend,
			request_timestamp, response_timestamp, tokens_used,
			success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.db.Exec(query,
		rec.OperationType, rec.ItemID, rec.ModelName, rec.Backend,
		rec.RequestTimestamp, rec.ResponseTimestamp, rec.TokensUsed,
		rec.Success, rec.ErrorMessage,
	)
	return err
}

// Stats returns aggregate ledger statistics since a cutoff.
func (t *UsageTracker) Stats(since time.Time) (*UsageStats, error) {
	if t == nil {
		return &UsageStats{}, nil
	}

	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0) as total_tokens,
			COUNT(DISTINCT model_name) as unique_models
		FROM llm_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.UniqueModels,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}
