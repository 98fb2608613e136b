package cli

import (
	"fmt"

	"jobtracker-backend/internal/di"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadContainer()
		if err != nil {
			return err
		}
		if err := di.Migrate(c); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
		return nil
	},
}
