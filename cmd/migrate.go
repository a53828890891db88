package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/wayfare/internal/config"
	"github.com/jon4hz/wayfare/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations to set up or update the schema of the sqlite or postgres store.

The schema of the supabase store is owned by the Supabase project and is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Database.Driver == config.DatabaseDriverSupabase {
			log.Warn("the supabase store is migrated through the Supabase project, nothing to do")
			return nil
		}

		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		fmt.Println("Database migrations completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
