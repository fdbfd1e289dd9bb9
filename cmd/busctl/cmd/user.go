package cmd

import (
	"github.com/spf13/cobra"

	"busoptimizer/backend/internal/repository/postgres/user"
)

var newUser user.CreateRequest

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a dashboard or admin account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		b, err := connect(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		created, err := user.NewRepository(b.db).Create(ctx, newUser)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), created)
	},
}

func init() {
	createUserCmd.Flags().StringVar(&newUser.Username, "username", "", "login name")
	createUserCmd.Flags().StringVar(&newUser.Password, "password", "", "initial password")
	createUserCmd.Flags().StringVar(&newUser.Role, "role", "DASHBOARD", "ADMIN or DASHBOARD")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createUserCmd)
}
