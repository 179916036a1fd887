package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rivalscope/internal/config"
	"rivalscope/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the report cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		reportStore, err := openStore()
		if err != nil {
			return err
		}
		defer reportStore.Close()

		entries, err := reportStore.ListReports()
		if err != nil {
			return fmt.Errorf("failed to list cached reports: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No cached reports.")
			return nil
		}

		for _, entry := range entries {
			focus := entry.FocusArea
			if focus == "" {
				focus = "-"
			}
			fmt.Printf("%s  %-40s  focus: %-20s  category: %s\n",
				entry.GeneratedAt.Format("2006-01-02 15:04"),
				joinTruncated(entry.Competitors, 40),
				focus,
				entry.DeviceCategory)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached reports",
	Long:  "Remove all cached reports, or only expired ones with --expired.",
	RunE: func(cmd *cobra.Command, args []string) error {
		expiredOnly, _ := cmd.Flags().GetBool("expired")

		reportStore, err := openStore()
		if err != nil {
			return err
		}
		defer reportStore.Close()

		var deleted int64
		if expiredOnly {
			deleted, err = reportStore.ClearExpired(config.Get().GetCacheTTL())
		} else {
			deleted, err = reportStore.ClearAll()
		}
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Printf("Removed %d cached report(s).\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().Bool("expired", false, "Only remove entries older than the configured TTL")
}

func openStore() (*store.Store, error) {
	reportStore, err := store.NewStore(config.Get().Cache.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open report cache: %w", err)
	}
	return reportStore, nil
}

func joinTruncated(parts []string, maxLen int) string {
	joined := strings.Join(parts, ", ")
	if len(joined) > maxLen {
		joined = joined[:maxLen-3] + "..."
	}
	return joined
}
