package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/backups"
	"github.com/mac-tron/brewhaul/internal/brew"
	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/config"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/migrate"
	"github.com/mac-tron/brewhaul/internal/output"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/ui"
)

var (
	migrateDryRun   bool
	migrateAuto     bool
	migrateAppStore bool
	migrateFormat   string

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Replace manually installed apps with Homebrew casks",
		Long: `Find manually installed applications with a matching Homebrew cask and
reinstall them through brew.

Each migration backs up the original bundle, installs the cask, verifies
the new bundle exists, and only then removes the original. A failed
install puts the original back. Backups stay restorable through
'brewhaul undo' until you discard them.

Without --auto the command is interactive: it shows the plan, asks how
to proceed, and can confirm each app individually.`,
		Example: `  # See what would happen, touch nothing
  brewhaul migrate --dry-run

  # Interactive migration
  brewhaul migrate

  # Migrate everything that matches, no prompts
  brewhaul migrate --auto

  # Offer App Store apps a cask as well
  brewhaul migrate --include-appstore

  # Plan as JSON for scripting
  brewhaul migrate --dry-run --format json`,
		RunE: runMigrate,
	}
)

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "plan only, never touch any app")
	migrateCmd.Flags().BoolVar(&migrateAuto, "auto", false, "migrate every match without prompting")
	migrateCmd.Flags().BoolVar(&migrateAppStore, "include-appstore", false, "offer App Store apps a cask too")
	migrateCmd.Flags().StringVar(&migrateFormat, "format", "table", "output format: table or json")

	RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateFormat != "table" && migrateFormat != "json" {
		return fmt.Errorf("invalid format %q (must be table or json)", migrateFormat)
	}
	quiet := migrateFormat == "json"
	ctx := cmd.Context()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	db, err := openStore(settings)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newCatalogClient(db, settings)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(ctx, client, quiet)
	if err != nil {
		// Candidates come from the catalog, so without it every app simply
		// reports no match; the run itself goes on.
		fmt.Fprintf(os.Stderr, "⚠ Cask catalog unavailable; nothing can be matched this run (%v)\n", err)
	}
	var entries []index.Entry
	if catalog != nil {
		entries = catalog.Entries()
	}

	apps, err := scanApps(ctx, settings, catalog, quiet)
	if err != nil {
		return err
	}
	verdicts := []classify.Verdict{classify.Manual}
	if migrateAppStore {
		verdicts = append(verdicts, classify.CuratedStore)
	}
	candidates := scan.Filter(apps, verdicts)

	// Match first. The dry-run planner only reads the catalog, so the plan
	// is safe to build before anyone has agreed to anything.
	plan, err := migrate.NewPlanner(entries, nil, migrate.WithDryRun(true)).Run(ctx, candidates)
	if err != nil {
		return err
	}

	if migrateDryRun {
		return renderPlan(plan)
	}

	planned := plan.Counts().Planned
	if planned == 0 {
		if migrateFormat == "json" {
			return printJSON(buildReportJSON(&migrate.Report{RunID: plan.RunID, Records: plan.Records}))
		}
		fmt.Println()
		fmt.Print(output.RenderPlanTable(plan.Records))
		fmt.Println("\nNo migratable applications found.")
		fmt.Println("Run 'brewhaul list' to see how your apps are classified.")
		return nil
	}

	opts := []migrate.Option{migrate.WithHistory(db)}
	var bar *output.ProgressBar

	if migrateAuto {
		if !quiet {
			bar = output.NewProgress(len(candidates), "Migrating applications")
			opts = append(opts, migrate.WithProgress(func(*migrate.Record) { bar.Increment() }))
		}
	} else {
		if !ui.Interactive() {
			return ui.ErrNonInteractive
		}
		fmt.Println()
		fmt.Print(output.RenderPlanTable(plan.Records))
		fmt.Println()

		hui := ui.NewHuhUI()
		mode, err := ui.ChooseMode(hui, planned)
		if err != nil {
			return err
		}
		procs := scan.NewProcesses()

		var prompter *ui.Prompter
		switch mode {
		case ui.ModeCancel:
			fmt.Println("Migration cancelled.")
			return nil
		case ui.ModeReview:
			prompter = ui.NewPrompter(hui, procs)
		case ui.ModeSelect:
			picked, err := ui.PickApps(hui, plannedNames(plan))
			if err != nil {
				return err
			}
			if len(picked) == 0 {
				fmt.Println("Migration cancelled.")
				return nil
			}
			prompter = ui.NewPrompter(hui, procs, ui.WithSelection(picked))
		case ui.ModeAll:
			prompter = ui.NewPrompter(hui, procs, ui.WithAutoConfirm())
		}
		opts = append(opts, migrate.WithApprover(prompter))
	}

	exec := migrate.NewExecutor(brew.NewClient(), backups.New(db, settings.BackupDir),
		migrate.WithAppsDir(settings.AppsDir),
		migrate.WithRetention(settings.RetainBackups),
		migrate.WithCatalog(client),
	)
	report, runErr := migrate.NewPlanner(entries, exec, opts...).Run(ctx, candidates)
	if bar != nil {
		bar.Finish()
	}
	if report != nil && len(report.Records) > 0 {
		if err := renderReport(report, settings); err != nil {
			return err
		}
	}
	return runErr
}

// renderPlan prints a dry-run plan in the selected format.
func renderPlan(plan *migrate.Report) error {
	if migrateFormat == "json" {
		return printJSON(buildPlanJSON(plan))
	}
	counts := plan.Counts()
	fmt.Println()
	fmt.Print(output.RenderPlanTable(plan.Records))
	fmt.Printf("\nPlanned: %d · No match: %d\n", counts.Planned, counts.NoCandidate)
	if counts.Planned > 0 {
		fmt.Println("\nRun 'brewhaul migrate' to migrate, or add --auto to skip the prompts.")
	}
	return nil
}

// renderReport prints a finished run in the selected format.
func renderReport(report *migrate.Report, settings *config.Settings) error {
	if migrateFormat == "json" {
		return printJSON(buildReportJSON(report))
	}
	counts := report.Counts()
	fmt.Println()
	fmt.Print(output.RenderReportTable(report))
	if counts.Completed > 0 {
		fmt.Println()
		if settings.RetainBackups {
			fmt.Printf("✓ Migrated %d application(s); originals kept under %s\n", counts.Completed, settings.BackupDir)
			fmt.Println("  Action: run 'brewhaul undo <app-name>' if one needs to go back.")
		} else {
			fmt.Printf("✓ Migrated %d application(s)\n", counts.Completed)
		}
	}
	if counts.Failed > 0 {
		fmt.Printf("⚠ %d application(s) failed; the table above names the failing step.\n", counts.Failed)
	}
	return nil
}

// plannedNames lists the apps the plan found a cask for, in plan order.
func plannedNames(plan *migrate.Report) []string {
	var names []string
	for _, rec := range plan.Records {
		if rec.Candidate != nil {
			names = append(names, rec.App.DisplayName)
		}
	}
	return names
}

type planAppJSON struct {
	CanMigrate         bool    `json:"can_migrate"`
	HomebrewEquivalent string  `json:"homebrew_equivalent,omitempty"`
	Score              float64 `json:"score,omitempty"`
	IsRunning          bool    `json:"is_running"`
	Status             string  `json:"status"`
}

type planSummaryJSON struct {
	TotalManualApps  int `json:"total_manual_apps"`
	CanMigrate       int `json:"can_migrate"`
	CannotMigrate    int `json:"cannot_migrate"`
	CurrentlyRunning int `json:"currently_running"`
}

type planJSON struct {
	DryRun        bool                   `json:"dry_run"`
	AppsToMigrate map[string]planAppJSON `json:"apps_to_migrate"`
	Summary       planSummaryJSON        `json:"summary"`
}

func buildPlanJSON(plan *migrate.Report) *planJSON {
	out := &planJSON{DryRun: true, AppsToMigrate: map[string]planAppJSON{}}
	for _, rec := range plan.Records {
		entry := planAppJSON{IsRunning: rec.App.Running, Status: "no_match"}
		if rec.Candidate != nil {
			entry.CanMigrate = true
			entry.HomebrewEquivalent = rec.Candidate.Entry.Token
			entry.Score = rec.Candidate.Score
			if rec.App.Running {
				entry.Status = "running"
			} else {
				entry.Status = "ready"
			}
			out.Summary.CanMigrate++
		} else {
			out.Summary.CannotMigrate++
		}
		if rec.App.Running {
			out.Summary.CurrentlyRunning++
		}
		out.AppsToMigrate[rec.App.DisplayName] = entry
	}
	out.Summary.TotalManualApps = len(plan.Records)
	return out
}

type resultJSON struct {
	Outcome    string `json:"outcome"`
	Cask       string `json:"cask,omitempty"`
	FailedStep string `json:"failed_step,omitempty"`
	Reason     string `json:"reason,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`
	Restored   bool   `json:"restored,omitempty"`
}

type reportSummaryJSON struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	NoMatch   int `json:"no_match"`
}

type reportJSON struct {
	DryRun  bool                  `json:"dry_run"`
	RunID   string                `json:"run_id"`
	Results map[string]resultJSON `json:"results"`
	Summary reportSummaryJSON     `json:"summary"`
}

func buildReportJSON(report *migrate.Report) *reportJSON {
	out := &reportJSON{
		RunID:   report.RunID,
		DryRun:  report.DryRun,
		Results: map[string]resultJSON{},
	}
	for _, rec := range report.Records {
		res := resultJSON{
			Outcome:    string(rec.State),
			FailedStep: string(rec.FailedStep),
			Reason:     rec.Reason,
			BackupPath: rec.BackupPath,
			Restored:   rec.Restored,
		}
		if rec.State == migrate.StateNoCandidate {
			res.Outcome = "no_match"
		}
		if rec.Candidate != nil {
			res.Cask = rec.Candidate.Entry.Token
		}
		out.Results[rec.App.DisplayName] = res
	}
	counts := report.Counts()
	out.Summary = reportSummaryJSON{
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Skipped:   counts.Skipped,
		NoMatch:   counts.NoCandidate,
	}
	return out
}
