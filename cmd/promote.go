package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/spf13/cobra"
)

var promoteCmdFlags struct {
	ApproveOnly bool
}

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Approve a user and make them an administrator",
	Long: `Approve the user with the given email address and grant the admin role.

Use this to bootstrap the first administrator. The user must have signed in once so their profile exists.`,
	Example: `wayfare promote alice@example.com
wayfare promote bob@example.com --approve-only`,
	Args: cobra.ExactArgs(1),
	RunE: promote,
}

func init() {
	promoteCmd.Flags().BoolVar(&promoteCmdFlags.ApproveOnly, "approve-only", false, "Only approve the user, keep their role")
	rootCmd.AddCommand(promoteCmd)
}

func promote(cmd *cobra.Command, args []string) error {
	_, db, err := loadConfigAndDB()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint: errcheck

	ctx := cmd.Context()
	profile, err := db.GetProfileByEmail(ctx, args[0])
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no profile for %s, the user has to sign in once first", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	if err := db.UpdateProfileStatus(ctx, profile.ID, database.ProfileStatusApproved); err != nil {
		return fmt.Errorf("failed to approve user: %w", err)
	}
	if !promoteCmdFlags.ApproveOnly {
		if err := db.UpdateProfileRole(ctx, profile.ID, database.RoleAdmin); err != nil {
			return fmt.Errorf("failed to grant admin role: %w", err)
		}
	}

	log.Info("user updated", "email", profile.Email, "id", profile.ID, "admin", !promoteCmdFlags.ApproveOnly)
	return nil
}
