package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/config"
	"github.com/mac-tron/brewhaul/internal/output"
)

var (
	dbPath  string
	cfgFile string
	noColor bool

	// RootCmd is the root command for brewhaul
	RootCmd = &cobra.Command{
		Use:   "brewhaul",
		Short: "Migrate manually installed macOS apps to Homebrew casks",
		Long: `brewhaul figures out where each app in /Applications came from and moves
the manually installed ones over to Homebrew casks, with a backup of every
bundle it replaces.

Quick Start:
  1. brewhaul list
  2. brewhaul migrate --dry-run
  3. brewhaul migrate
  4. brewhaul undo <app>   # if you change your mind

Features:
  • Provenance detection via Homebrew, App Store receipts, and code signatures
  • Cask matching against the Homebrew catalog with fuzzy name scoring
  • Timestamped backups of every replaced bundle, restorable with one command
  • Dry-run planning and JSON output for scripting

Examples:
  # See where your apps come from
  brewhaul list

  # Only the manually installed ones
  brewhaul list --type manual

  # Preview the migration plan
  brewhaul migrate --dry-run

  # Migrate without prompts (backups are still taken)
  brewhaul migrate --auto

  # Check the cask catalog cache
  brewhaul cache status

  # Put an app back the way it was
  brewhaul undo Rectangle`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				output.DisableColor()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("brewhaul: migrate manually installed macOS apps to Homebrew casks")
			fmt.Println()

			settings, err := loadSettings()
			if err != nil {
				fmt.Println("Run 'brewhaul list' to see where your apps come from.")
				fmt.Println("Run 'brewhaul --help' for the full reference.")
				return nil
			}
			if _, statErr := os.Stat(settings.DBPath); os.IsNotExist(statErr) {
				fmt.Println("Run 'brewhaul list' to see where your apps come from.")
				fmt.Println("Run 'brewhaul migrate --dry-run' to preview what could move to Homebrew.")
				fmt.Println("Run 'brewhaul --help' for the full reference.")
			} else {
				fmt.Println("Tip: Run 'brewhaul migrate --dry-run' to preview what could move.")
				fmt.Println("     Run 'brewhaul undo --list' to see restorable backups.")
				fmt.Println("     Run 'brewhaul --help' for all commands.")
			}
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.brewhaul/brewhaul.db)")
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.brewhaul.yaml)")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadSettings resolves the config file and environment, then applies flag
// overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		settings.DBPath = dbPath
	}
	return settings, nil
}
