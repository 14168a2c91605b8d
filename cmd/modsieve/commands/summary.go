package commands

import (
	"github.com/spf13/cobra"

	"github.com/modsieve/modsieve/logger"
)

// SummaryCmd generates and posts the periodic summary.
var SummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate and post the periodic summary",
	Long: `Compute the reporting-window statistics (scan volume, reports,
moderator alignment, deltas against the previous window) and post them
to the summary webhook. Without --force this respects the configured
interval gate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		p, cleanup, err := buildPipeline(false)
		if err != nil {
			return err
		}
		defer cleanup()

		if !force {
			due, err := p.SummaryDue()
			if err != nil {
				return err
			}
			if !due {
				logger.Infow("Summary not due yet; use --force to send anyway")
				return nil
			}
		}
		return p.SendSummary(cmd.Context())
	},
}

func init() {
	SummaryCmd.Flags().BoolP("force", "f", false, "Send the summary regardless of schedule")
}
