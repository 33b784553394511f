package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	"github.com/turtacn/taskflow/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/taskflow/pkg/utils"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var email, role string
	promoteCmd := &cobra.Command{
		Use:   "promote",
		Short: "Change the role of the account registered under --email",
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

			return promoteUser(cmd.Context(), cmd.OutOrStdout(), postgres.NewUserRepository(db.DB(), e.log), email, models.Role(role))
		},
	}
	promoteCmd.Flags().StringVar(&email, "email", "", "account email")
	promoteCmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "new role (user or admin)")
	_ = promoteCmd.MarkFlagRequired("email")

	userCmd.AddCommand(promoteCmd)
	return userCmd
}

func promoteUser(ctx context.Context, out io.Writer, users repository.UserRepository, email string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	user, err := users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.Role == role {
		fmt.Fprintf(out, "%s already has role %s\n", utils.MaskEmail(user.Email), role)
		return nil
	}
	if _, err := users.UpdateRole(ctx, user.ID, role); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%s) is now %s\n", utils.MaskEmail(user.Email), user.ID, role)
	return nil
}
