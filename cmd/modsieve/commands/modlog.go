package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ModlogCmd applies recent moderation log actions once and exits.
var ModlogCmd = &cobra.Command{
	Use:   "modlog",
	Short: "Apply recent moderation log actions to the reported ledger",
	Long: `Fetch the recent moderation log for every configured subreddit and
resolve any reported items the moderators have acted on. Observed
decisions are journaled; re-running is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cleanup, err := buildPipeline(false)
		if err != nil {
			return err
		}
		defer cleanup()

		changed, err := p.RefreshModlog(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Modlog refresh resolved %d reports\n", changed)
		return nil
	},
}
