package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Re-run note generation for a release",
	Long: `Regenerate the stored documents for an existing release. Audiences
with manual edits are preserved; pass --force to overwrite them and clear
the edit flags. The release returns to the ready state and the hosted
changelog serves the new text; no channels are re-notified.`,
	RunE: runRegenerate,
}

var (
	regenerateRelease string
	regenerateForce   bool
)

func init() {
	rootCmd.AddCommand(regenerateCmd)

	regenerateCmd.Flags().StringVar(&regenerateRelease, "release", "", "Release ID to regenerate")
	regenerateCmd.Flags().BoolVar(&regenerateForce, "force", false, "Overwrite manually edited audiences")
	_ = regenerateCmd.MarkFlagRequired("release")
}

func runRegenerate(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.orch.Regenerate(cmd.Context(), regenerateRelease, regenerateForce)
	if err != nil {
		return err
	}

	fmt.Printf("regenerated %s with %s (%d tokens)\n", result.ReleaseID, result.Model, result.TokensUsed)
	if len(result.Rewritten) > 0 {
		fmt.Printf("  rewritten: %s\n", strings.Join(result.Rewritten, ", "))
	}
	if len(result.Preserved) > 0 {
		fmt.Printf("  preserved (edited): %s\n", strings.Join(result.Preserved, ", "))
	}
	return nil
}
