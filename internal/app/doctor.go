package app

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/brew"
	"github.com/mac-tron/brewhaul/internal/index"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check system health",
	Long: `Runs diagnostic checks on your brewhaul installation.

Checks:
  • Homebrew is installed and responding
  • mas CLI availability (App Store detection)
  • Database opens and has a schema
  • Cask catalog cache freshness
  • Backup directory is writable
  • Applications directory is readable`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running brewhaul diagnostics...")
	fmt.Println()

	// Critical and warning issues are tracked separately: criticals exit 1
	// through the normal error path, warnings-only exits 2.
	criticalIssues := 0
	warningIssues := 0

	settings, settingsErr := loadSettings()
	if settingsErr != nil {
		fmt.Println("✗ Cannot resolve settings:", settingsErr)
		criticalIssues++
	}

	// Check 1: Homebrew responds
	if version, err := brew.NewClient().Version(cmd.Context()); err != nil {
		fmt.Println("✗ Homebrew not usable:", err)
		fmt.Println("  Action: Install Homebrew from https://brew.sh")
		criticalIssues++
	} else {
		fmt.Println("✓", version)
	}

	// Check 2: mas CLI, warning only; receipts still identify App Store apps
	if _, err := exec.LookPath("mas"); err != nil {
		fmt.Println("⚠ mas CLI not found")
		fmt.Println("  Action: Run 'brew install mas' for a second App Store signal")
		warningIssues++
	} else {
		fmt.Println("✓ mas CLI found")
	}

	if settings != nil {
		// Check 3: Database opens and has a schema
		db, err := openStore(settings)
		if err != nil {
			fmt.Println("✗ Cannot open database:", err)
			criticalIssues++
		} else {
			defer db.Close()
			fmt.Println("✓ Database is accessible:", settings.DBPath)

			// Check 4: Catalog cache freshness, warning only
			entry, err := db.GetCacheEntry(index.CatalogKey)
			switch {
			case err != nil:
				fmt.Println("⚠ Cannot read catalog cache:", err)
				warningIssues++
			case entry == nil:
				fmt.Println("⚠ Cask catalog not cached yet")
				fmt.Println("  This is normal before the first scan")
				warningIssues++
			case time.Now().After(entry.ExpiresAt()):
				fmt.Println("⚠ Cask catalog cache is stale")
				fmt.Println("  Action: Run 'brewhaul cache clear' then any command to refetch")
				warningIssues++
			default:
				age := time.Since(entry.FetchedAt).Round(time.Minute)
				fmt.Printf("✓ Cask catalog cached (fetched %s ago)\n", age)
			}
		}

		// Check 5: Backup directory writable
		if err := probeWritable(settings.BackupDir); err != nil {
			fmt.Println("✗ Backup directory not writable:", err)
			criticalIssues++
		} else {
			fmt.Println("✓ Backup directory writable:", settings.BackupDir)
		}

		// Check 6: Applications directory readable
		if entries, err := os.ReadDir(settings.AppsDir); err != nil {
			fmt.Println("✗ Cannot read applications directory:", err)
			criticalIssues++
		} else {
			bundles := 0
			for _, e := range entries {
				if strings.HasSuffix(e.Name(), ".app") {
					bundles++
				}
			}
			fmt.Printf("✓ Applications directory readable (%d app bundles)\n", bundles)
		}
	}

	fmt.Println()
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Println("✓ All checks passed!")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  • See your apps: brewhaul list")
		fmt.Println("  • Preview a migration: brewhaul migrate --dry-run")
		fmt.Println("  • Migrate: brewhaul migrate")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	// Warning-only path: exit 2 directly so main.go's error handler never
	// reprints a message that is already on screen.
	fmt.Printf("Found %d warning(s). System is functional but not fully configured.\n", warningIssues)
	os.Exit(2)
	return nil // unreachable; satisfies compiler
}

// probeWritable creates the directory if needed and writes a throwaway file
// to prove permissions.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return err
	}
	return os.Remove(probe)
}
