package cmd

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/pkg/config"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <secret>",
	Short: "Print the bcrypt hash of a device API key",
	Long: `hash-key prints a bcrypt hash that can replace the plain key in
api_keys, e.g. "ENTRY_GATE:$2a$10$...".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := strings.TrimSpace(args[0])
		if secret == "" {
			return errors.New("secret must not be empty")
		}

		hash, err := auth.HashPassword(secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var (
	tokenUserID int64
	tokenRole   string
)

var genTokenCmd = &cobra.Command{
	Use:   "gen-token",
	Short: "Issue an access token signed with the configured key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		role := strings.ToUpper(tokenRole)
		if role != auth.RoleAdmin && role != auth.RoleDashboard {
			return errors.Errorf("role must be %s or %s", auth.RoleAdmin, auth.RoleDashboard)
		}

		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}

		a, err := auth.New(cfg.Auth.JWTKey, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}

		token, err := a.GenerateToken(tokenUserID, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	genTokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "user id carried in the token")
	genTokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleDashboard, "ADMIN or DASHBOARD")
	_ = genTokenCmd.MarkFlagRequired("user-id")

	rootCmd.AddCommand(hashKeyCmd)
	rootCmd.AddCommand(genTokenCmd)
}
