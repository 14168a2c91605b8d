// Package db opens the modsieve SQLite database.
//
// The pipeline's moderation state lives in JSON files (see the outcome
// package); SQLite holds only operational telemetry: the per-call LLM usage
// ledger written by the arbiter.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/modsieve/modsieve/errors"
)

// Open opens a SQLite database at the specified path with WAL mode and a
// busy timeout, and applies migrations.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// WAL allows the reconciler to read usage stats while the arbiter writes
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migration failed")
	}

	if logger != nil {
		logger.Infow("Database opened", "path", path, "wal_mode", true)
	}

	return conn, nil
}
