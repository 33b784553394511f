package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/infrastructure/crypto"
	"github.com/turtacn/taskflow/pkg/clock"
)

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Work with access tokens",
	}

	var (
		userID, username, role string
		ttl                    time.Duration
	)
	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign an access token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.Role(role).Valid() {
				return fmt.Errorf("invalid role %q", role)
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}

			var vaultClient crypto.VaultClient
			if e.cfg.Vault.Enabled {
				if vaultClient, err = crypto.NewVaultClient(&e.cfg.Vault, e.log); err != nil {
					return err
				}
			}
			secret, err := crypto.LoadJWTSecret(cmd.Context(), vaultClient, &e.cfg.Vault, &e.cfg.JWT)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = time.Duration(e.cfg.JWT.TTL) * time.Second
			}

			tokens := crypto.NewJWTManager(crypto.JWTConfig{Secret: secret, Issuer: e.cfg.JWT.Issuer, TTL: ttl}, clock.New(), e.log)
			token, expiresAt, err := tokens.Issue(cmd.Context(), &models.User{ID: userID, Username: username, Role: models.Role(role)})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	mintCmd.Flags().StringVar(&userID, "user-id", "", "subject user id")
	mintCmd.Flags().StringVar(&username, "username", "", "username claim")
	mintCmd.Flags().StringVar(&role, "role", string(models.RoleUser), "role claim (user or admin)")
	mintCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to jwt.ttl")
	_ = mintCmd.MarkFlagRequired("user-id")

	tokenCmd.AddCommand(mintCmd)
	return tokenCmd
}
