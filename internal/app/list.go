package app

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/output"
	"github.com/mac-tron/brewhaul/internal/scan"
)

var (
	listType   string
	listFormat string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List applications by install source",
		Long: `Scan the applications directory and classify each app by how it was
installed.

Every app gets one of four types:
  homebrew  an installed cask accounts for the bundle
  appstore  a Mac App Store receipt is present
  manual    a signed or bare bundle with neither of the above
  unknown   the evidence was contradictory or unavailable

The confidence column grades how strongly the evidence supports the type.`,
		Example: `  # All applications
  brewhaul list

  # Only the manually installed ones
  brewhaul list --type manual

  # Several types at once
  brewhaul list --type manual,unknown

  # Machine-readable output
  brewhaul list --format json`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().StringVar(&listType, "type", "all", "filter by install source: homebrew, appstore, manual, unknown, or all (comma-separated)")
	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format: table or json")

	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	verdicts, err := parseTypeFilter(listType)
	if err != nil {
		return err
	}
	if listFormat != "table" && listFormat != "json" {
		return fmt.Errorf("invalid format %q (must be table or json)", listFormat)
	}
	quiet := listFormat == "json"

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	// The catalog sharpens the Homebrew check, but a scan works without it.
	var catalog *index.Catalog
	if db, dbErr := openStore(settings); dbErr == nil {
		defer db.Close()
		if client, cErr := newCatalogClient(db, settings); cErr == nil {
			if loaded, lErr := loadCatalog(cmd.Context(), client, quiet); lErr == nil {
				catalog = loaded
			}
		}
	}
	if catalog == nil {
		fmt.Fprintln(os.Stderr, "⚠ Cask catalog unavailable; Homebrew detection falls back to name matching")
	}

	apps, err := scanApps(cmd.Context(), settings, catalog, quiet)
	if err != nil {
		return err
	}
	filtered := scan.Filter(apps, verdicts)

	if listFormat == "json" {
		return printJSON(buildListJSON(filtered, apps))
	}

	fmt.Println()
	fmt.Print(output.RenderAppTable(filtered))
	fmt.Println()
	fmt.Println(output.RenderAppSummary(apps))
	return nil
}

// parseTypeFilter maps the --type flag to a verdict set; "all" means no
// filtering.
func parseTypeFilter(value string) ([]classify.Verdict, error) {
	if value == "" || strings.EqualFold(value, "all") {
		return nil, nil
	}
	return classify.ParseVerdicts(value)
}

type listAppJSON struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Version    string `json:"version,omitempty"`
	BundleID   string `json:"bundle_id,omitempty"`
	Confidence string `json:"confidence"`
	Running    bool   `json:"running"`
}

type listSummaryJSON struct {
	HomebrewCount int `json:"homebrew_count"`
	AppstoreCount int `json:"appstore_count"`
	ManualCount   int `json:"manual_count"`
	UnknownCount  int `json:"unknown_count"`
	Total         int `json:"total"`
}

type listJSON struct {
	Homebrew []listAppJSON   `json:"homebrew"`
	Appstore []listAppJSON   `json:"appstore"`
	Manual   []listAppJSON   `json:"manual"`
	Unknown  []listAppJSON   `json:"unknown"`
	Summary  listSummaryJSON `json:"summary"`
}

// buildListJSON groups the filtered apps by type. The summary counts the
// whole scan, matching the table footer, so a filtered listing still shows
// the full breakdown.
func buildListJSON(filtered, all []scan.App) *listJSON {
	out := &listJSON{
		Homebrew: []listAppJSON{},
		Appstore: []listAppJSON{},
		Manual:   []listAppJSON{},
		Unknown:  []listAppJSON{},
	}

	sorted := make([]scan.App, len(filtered))
	copy(sorted, filtered)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].DisplayName) < strings.ToLower(sorted[j].DisplayName)
	})

	for _, app := range sorted {
		entry := listAppJSON{
			Name:       app.DisplayName,
			Path:       app.Path,
			Version:    app.Version,
			BundleID:   app.BundleID,
			Confidence: string(app.Provenance.Confidence),
			Running:    app.Running,
		}
		switch app.Provenance.Verdict {
		case classify.ManagedPackage:
			out.Homebrew = append(out.Homebrew, entry)
		case classify.CuratedStore:
			out.Appstore = append(out.Appstore, entry)
		case classify.Manual:
			out.Manual = append(out.Manual, entry)
		default:
			out.Unknown = append(out.Unknown, entry)
		}
	}

	for _, app := range all {
		switch app.Provenance.Verdict {
		case classify.ManagedPackage:
			out.Summary.HomebrewCount++
		case classify.CuratedStore:
			out.Summary.AppstoreCount++
		case classify.Manual:
			out.Summary.ManualCount++
		default:
			out.Summary.UnknownCount++
		}
	}
	out.Summary.Total = len(all)
	return out
}
