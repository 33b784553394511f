package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and tasks tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := e.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.AutoMigrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema migrated (%s)\n", e.cfg.Database.Driver)
			return nil
		},
	}
}
