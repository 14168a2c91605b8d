package db

import (
	"database/sql"

	"github.com/modsieve/modsieve/errors"
)

// migrations are applied in order; each entry runs at most once, tracked by
// the schema_version table.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS llm_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		backend TEXT NOT NULL,
		request_timestamp TIMESTAMP NOT NULL,
		response_timestamp TIMESTAMP,
		tokens_used INTEGER,
		success BOOLEAN NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_usage_request_ts ON llm_usage(request_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_usage_model ON llm_usage(model_name)`,
}

// Migrate applies pending schema migrations.
func Migrate(conn *sql.DB) error {
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return errors.Wrap(err, "failed to create schema_version table")
	}

	var current int
	if err := conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}

	for i := current; i < len(migrations); i++ {
		if _, err := conn.Exec(migrations[i]); err != nil {
			return errors.Wrapf(err, "migration %d failed", i+1)
		}
		if _, err := conn.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return errors.Wrapf(err, "failed to record migration %d", i+1)
		}
	}

	return nil
}
