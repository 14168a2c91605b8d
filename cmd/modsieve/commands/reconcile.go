package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReconcileCmd runs one reconciliation pass and exits.
var ReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Resolve pending reports against the live API once",
	Long: `Probe every matured pending report and record whether the moderators
removed or left up the item. Equivalent to one background reconciliation
cycle of the running pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cleanup, err := buildPipeline(false)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := p.RunReconcile(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Checked %d reports: %d removed, %d approved, %d still pending, %d errors, %d pruned\n",
			stats.Checked, stats.Removed, stats.Approved, stats.StillPending, stats.Errors, stats.Pruned)
		return nil
	},
}
