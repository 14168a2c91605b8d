// Package commands implements the modsieve CLI subcommands.
package commands

import (
	"database/sql"

	"github.com/modsieve/modsieve/config"
	"github.com/modsieve/modsieve/db"
	"github.com/modsieve/modsieve/errors"
	"github.com/modsieve/modsieve/logger"
	"github.com/modsieve/modsieve/pipeline"
)

// buildPipeline loads and validates configuration, opens the usage ledger,
// and assembles the pipeline. The returned cleanup closes what was opened.
// dryRun forces dry-run mode on top of whatever the config says.
func buildPipeline(dryRun bool) (*pipeline.Pipeline, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}
	if dryRun {
		cfg.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var ledger *sql.DB
	if cfg.Database.Path != "" {
		ledger, err = db.Open(cfg.Database.Path, logger.Logger)
		if err != nil {
			// usage tracking is telemetry; the pipeline runs without it
			logger.Warnw("Usage ledger unavailable, continuing without tracking", "error", err)
			ledger = nil
		}
	}

	p, err := pipeline.Build(cfg, ledger, logger.Logger)
	if err != nil {
		if ledger != nil {
			ledger.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := p.Close(); err != nil {
			logger.Warnw("Pipeline close failed", "error", err)
		}
		if ledger != nil {
			ledger.Close()
		}
	}
	return p, cleanup, nil
}
