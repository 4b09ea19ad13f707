package output_test

import (
	"fmt"
	"time"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/match"
	"github.com/mac-tron/brewhaul/internal/migrate"
	"github.com/mac-tron/brewhaul/internal/output"
	"github.com/mac-tron/brewhaul/internal/scan"
)

// Example showing how to render the classified app table
func ExampleRenderAppTable() {
	apps := []scan.App{
		{
			DisplayName: "Slack",
			Path:        "/Applications/Slack.app",
			Version:     "4.39.90",
			Provenance:  classify.Classification{Verdict: classify.ManagedPackage, Confidence: classify.High},
		},
		{
			DisplayName: "Rectangle",
			Path:        "/Applications/Rectangle.app",
			Version:     "0.80",
			Provenance:  classify.Classification{Verdict: classify.Manual, Confidence: classify.High},
		},
	}

	table := output.RenderAppTable(apps)
	fmt.Println(table)
	fmt.Println(output.RenderAppSummary(apps))
}

// Example showing how to render a dry-run migration plan
func ExampleRenderPlanTable() {
	records := []*migrate.Record{
		{
			App:       scan.App{DisplayName: "Rectangle"},
			Candidate: &match.Candidate{Entry: index.Entry{Token: "rectangle"}, Score: 1.0},
			State:     migrate.StateCandidateFound,
		},
		{
			App:   scan.App{DisplayName: "Bespoke Tool"},
			State: migrate.StateNoCandidate,
		},
	}

	table := output.RenderPlanTable(records)
	fmt.Println(table)
}

// Example showing how to use a progress bar
func ExampleProgressBar() {
	// Create a progress bar for 100 items
	progress := output.NewProgress(100, "Migrating applications")

	// Simulate processing
	for i := 0; i < 100; i++ {
		// Do some work...
		progress.Increment()
	}

	// Mark as complete
	progress.Finish()
}

// Example showing how to use a spinner
func ExampleSpinner() {
	// Create and start a spinner
	spinner := output.NewSpinner("Scanning applications")

	// Simulate some work
	time.Sleep(2 * time.Second)

	// Stop the spinner
	spinner.Stop()
	fmt.Println("Scan complete!")
}
