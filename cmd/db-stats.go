package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display how many users, trips, activities and joins the store holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := loadConfigAndDB()
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("Users: %s\n", humanize.Comma(stats.Profiles()))
		fmt.Printf("  Pending: %s\n", humanize.Comma(stats.PendingProfiles))
		fmt.Printf("  Approved: %s\n", humanize.Comma(stats.ApprovedProfiles))
		fmt.Printf("  Rejected: %s\n", humanize.Comma(stats.RejectedProfiles))
		fmt.Printf("Trips: %s\n", humanize.Comma(stats.Trips))
		fmt.Printf("Activities: %s\n", humanize.Comma(stats.Activities))
		fmt.Printf("Activity joins: %s\n", humanize.Comma(stats.Joins))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
