package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import recent releases for a connected repository",
	Long: `Generate and store notes for a repository's existing releases.
Already-imported tags are skipped, so the command can be re-run safely.
Backfilled releases do not notify chat or email channels; only the hosted
changelog is populated.`,
	RunE: runBackfill,
}

var (
	backfillRepo  string
	backfillCount int
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVarP(&backfillRepo, "repo", "r", "", "Repository full name (owner/name)")
	backfillCmd.Flags().IntVarP(&backfillCount, "count", "n", 10, "How many recent releases to import")
	_ = backfillCmd.MarkFlagRequired("repo")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.orch.Backfill(cmd.Context(), backfillRepo, backfillCount)
	if err != nil {
		return err
	}

	for _, tag := range result.Imported {
		fmt.Printf("imported  %s\n", tag)
	}
	for _, tag := range result.Skipped {
		fmt.Printf("skipped   %s (already recorded)\n", tag)
	}
	for _, te := range result.Errors {
		fmt.Printf("failed    %s: %v\n", te.Tag, te.Err)
	}
	fmt.Printf("\n%d imported, %d skipped, %d failed\n",
		len(result.Imported), len(result.Skipped), len(result.Errors))

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d release(s) failed to import", len(result.Errors))
	}
	return nil
}
