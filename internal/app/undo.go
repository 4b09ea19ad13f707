package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/backups"
	"github.com/mac-tron/brewhaul/internal/brew"
	"github.com/mac-tron/brewhaul/internal/output"
	"github.com/mac-tron/brewhaul/internal/store"
)

var (
	undoList bool
	undoYes  bool

	undoCmd = &cobra.Command{
		Use:   "undo [app-name]",
		Short: "Restore a migrated app from its backup",
		Long: `Put a migrated application back the way it was. The cask installed in
its place is uninstalled first, then the backed-up bundle moves back to
its original location.

With no app name the newest backup is restored. Use --list to see what
can be restored.`,
		Example: `  # What can be restored
  brewhaul undo --list

  # Restore a specific app
  brewhaul undo Slack

  # Restore the most recent migration without confirmation
  brewhaul undo --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: runUndo,
	}
)

func init() {
	undoCmd.Flags().BoolVar(&undoList, "list", false, "list restorable backups and exit")
	undoCmd.Flags().BoolVar(&undoYes, "yes", false, "skip the confirmation prompt")

	RootCmd.AddCommand(undoCmd)
}

func runUndo(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(settings)
	if err != nil {
		return err
	}
	defer db.Close()

	mgr := backups.New(db, settings.BackupDir)

	if undoList {
		active, err := mgr.ListActive()
		if err != nil {
			return fmt.Errorf("failed to list backups: %w", err)
		}
		fmt.Println()
		fmt.Print(output.RenderBackupTable(active))
		if len(active) > 0 {
			fmt.Println("\nRestore with: brewhaul undo <app-name>")
		}
		return nil
	}

	backup, err := pickBackup(mgr, args)
	if err != nil {
		return err
	}

	fmt.Println("\nRestore details:")
	fmt.Printf("  App:           %s\n", backup.AppName)
	fmt.Printf("  Created:       %s\n", backup.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Original path: %s\n", backup.OriginalPath)
	fmt.Printf("  Backup path:   %s\n", backup.BackupPath)
	fmt.Println()

	if !undoYes && !confirmRestore(backup.AppName) {
		fmt.Println("Restore cancelled.")
		return nil
	}

	// The cask occupying the original path has to go before the bundle
	// moves back.
	if token, err := latestCaskFor(db, backup.AppName); err != nil {
		return err
	} else if token != "" {
		if err := uninstallCask(cmd, token); err != nil {
			return err
		}
	}

	if err := mgr.Restore(backup); err != nil {
		return fmt.Errorf("failed to restore %s: %w", backup.AppName, err)
	}

	fmt.Printf("✓ Restored %s to %s\n", backup.AppName, backup.OriginalPath)
	fmt.Println("\nRun 'brewhaul list' to verify.")
	return nil
}

// pickBackup resolves which backup to restore: the named app's newest, or
// the newest overall when no name is given.
func pickBackup(mgr *backups.Manager, args []string) (*store.Backup, error) {
	if len(args) > 0 {
		name := args[0]
		backup, err := mgr.Latest(name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up backup for %s: %w", name, err)
		}
		if backup == nil {
			return nil, fmt.Errorf("no restorable backup for %q (run 'brewhaul undo --list' to see what can be restored)", name)
		}
		return backup, nil
	}

	active, err := mgr.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("no restorable backups found")
	}
	return active[0], nil
}

func confirmRestore(appName string) bool {
	fmt.Printf("Restore %s from its backup? [y/N]: ", appName)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// latestCaskFor finds the cask installed by the newest completed migration
// of the given app, or "" when no such migration is recorded.
func latestCaskFor(db *store.Store, appName string) (string, error) {
	migrations, err := db.ListMigrations(0)
	if err != nil {
		return "", fmt.Errorf("failed to read migration history: %w", err)
	}
	for _, m := range migrations {
		if m.AppName == appName && m.Outcome == "completed" && m.CaskToken != "" {
			return m.CaskToken, nil
		}
	}
	return "", nil
}

// uninstallCask removes the cask if brew still has it installed.
func uninstallCask(cmd *cobra.Command, token string) error {
	casks := brew.NewClient()
	installed, err := casks.CaskInstalled(cmd.Context(), token)
	if err != nil {
		return fmt.Errorf("failed to check cask %s: %w", token, err)
	}
	if !installed {
		return nil
	}

	var spinner *output.Spinner
	if isatty.IsTerminal(os.Stdout.Fd()) {
		spinner = output.NewSpinner(fmt.Sprintf("Uninstalling cask %s...", token))
		spinner.Start()
	} else {
		fmt.Printf("Uninstalling cask %s...\n", token)
	}
	err = casks.UninstallCask(cmd.Context(), token)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to uninstall cask %s: %w", token, err)
	}
	fmt.Printf("✓ Uninstalled cask %s\n", token)
	return nil
}
