package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modsieve/modsieve/logger"
)

// RunCmd starts the full pipeline.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the moderation pipeline",
	Long: `Start the scan loop and background jobs: comment stream polling,
prefilter and arbiter evaluation, report/remove actions, outcome
reconciliation, modlog refresh, and periodic summaries.

The process runs until interrupted (SIGINT/SIGTERM).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		p, cleanup, err := buildPipeline(dryRun)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := p.Run(ctx); err != nil {
			return err
		}
		logger.Infow("Pipeline stopped")
		return nil
	},
}

func init() {
	RunCmd.Flags().Bool("dry-run", false, "Compute and log every decision but perform no report/remove call")
}
