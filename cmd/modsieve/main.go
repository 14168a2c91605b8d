package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modsieve/modsieve/cmd/modsieve/commands"
	"github.com/modsieve/modsieve/logger"
)

var rootCmd = &cobra.Command{
	Use:   "modsieve",
	Short: "modsieve - automated comment moderation pipeline",
	Long: `modsieve scans subreddit comment streams, escalates suspicious items
through pattern rules and ML toxicity scorers to an LLM arbiter, files
reports or removals, and reconciles them against moderator decisions.

Available commands:
  run       - Start the moderation pipeline (scan loop + background jobs)
  reconcile - Resolve pending reports against the live API once
  modlog    - Apply recent moderation log actions to the reported ledger
  summary   - Generate and post the periodic summary
  version   - Show version information

Examples:
  modsieve run                   # Start the pipeline
  modsieve run --dry-run         # Decide everything, act on nothing
  modsieve reconcile             # One-shot outcome reconciliation
  modsieve summary --force       # Post a summary regardless of schedule`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit structured JSON logs instead of console output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ReconcileCmd)
	rootCmd.AddCommand(commands.ModlogCmd)
	rootCmd.AddCommand(commands.SummaryCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
