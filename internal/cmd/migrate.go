package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Create or update the database tables. Every statement is idempotent,
so migrate can be run repeatedly. The serve command also applies the schema
on startup; this command exists for provisioning without starting the
service.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	app, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.store.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}
