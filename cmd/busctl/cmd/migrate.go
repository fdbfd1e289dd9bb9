package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"busoptimizer/backend/internal/commands"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		b, err := connect(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err = commands.MigrateUP(ctx, b.db, b.log); err != nil {
			return err
		}

		version, err := commands.Version(ctx, b.db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %s\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
