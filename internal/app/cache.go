package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache [status|clear]",
	Short: "Inspect or clear the cask catalog cache",
	Long: `The cask catalog is cached in the local database so repeated scans do
not refetch it. 'status' shows what is cached and when it expires;
'clear' drops every cached entry so the next run fetches fresh data.`,
	Example: `  # What is cached right now
  brewhaul cache

  # Force a refetch on the next run
  brewhaul cache clear`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"status", "clear"},
	RunE:      runCache,
}

func init() {
	RootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(settings)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "status":
		stats, err := db.GetCacheStats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}
		catalog, err := db.GetCacheEntry(index.CatalogKey)
		if err != nil {
			return fmt.Errorf("failed to read catalog cache entry: %w", err)
		}
		fmt.Println()
		fmt.Print(output.RenderCacheStatus(stats, catalog, time.Now()))
		return nil
	case "clear":
		cleared, err := db.ClearCache()
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("✓ Cleared %d cache entr%s\n", cleared, pluralY(cleared))
		fmt.Println("  The cask catalog will be fetched on the next run.")
		return nil
	default:
		return fmt.Errorf("unknown cache action %q (must be status or clear)", action)
	}
}

func pluralY(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
