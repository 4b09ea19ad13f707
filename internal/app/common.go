package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/mac-tron/brewhaul/internal/brew"
	"github.com/mac-tron/brewhaul/internal/config"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/mas"
	"github.com/mac-tron/brewhaul/internal/output"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

// openStore opens the migration database, creating the schema if needed.
func openStore(settings *config.Settings) (*store.Store, error) {
	db, err := store.New(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return db, nil
}

// newCatalogClient builds the cask catalog client over the store's cache
// table.
func newCatalogClient(db *store.Store, settings *config.Settings) (*index.Client, error) {
	return index.NewClient(db,
		index.WithCatalogURL(settings.CatalogURL),
		index.WithTTL(settings.CacheTTL),
	)
}

// loadCatalog fetches or refreshes the cask catalog. quiet suppresses the
// progress output so JSON on stdout stays parseable; the staleness warning
// goes to stderr either way.
func loadCatalog(ctx context.Context, client *index.Client, quiet bool) (*index.Catalog, error) {
	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !quiet && isTTY {
		spinner = output.NewSpinner("Loading cask catalog...")
		spinner.Start()
	}

	catalog, err := client.Load(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Stop()
		} else {
			spinner.StopWithMessage(fmt.Sprintf("✓ Cask catalog loaded (%d casks)", catalog.Len()))
		}
	}
	if err != nil {
		return nil, err
	}

	if staleAt := client.StaleAt(); !staleAt.IsZero() {
		fmt.Fprintf(os.Stderr, "⚠ Refresh failed; using a cask catalog fetched %s\n", staleAt.Format("2006-01-02 15:04"))
	}
	return catalog, nil
}

// scanApps scans and classifies the applications directory. catalog may be
// nil; the registry check then relies on name-derived cask tokens alone.
func scanApps(ctx context.Context, settings *config.Settings, catalog *index.Catalog, quiet bool) ([]scan.App, error) {
	var tokens scan.TokenSource
	if catalog != nil {
		tokens = catalog
	}
	provider := scan.NewProvider(brew.NewClient(), mas.NewClient(), tokens)
	scanner := scan.NewScanner(settings.AppsDir, provider, scan.WithWorkers(settings.Workers))

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if !quiet {
		if isTTY {
			spinner = output.NewSpinner("Scanning applications...")
			spinner.Start()
		} else {
			fmt.Println("Scanning applications...")
		}
	}

	apps, err := scanner.Scan(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Stop()
		} else {
			spinner.StopWithMessage(fmt.Sprintf("✓ %d applications classified", len(apps)))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan applications: %w", err)
	}
	return apps, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}
