// Package output renders brewhaul's terminal output: the classified app
// table, migration plan and report tables, backup listings, and the cache
// status block, plus progress indicators for the slow paths.
//
// Tables are plain string builders with ANSI color, no TUI. Color is dropped
// when stdout is not a terminal, when NO_COLOR is set, or when the --no-color
// flag disabled it.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/mac-tron/brewhaul/internal/classify"
	"github.com/mac-tron/brewhaul/internal/migrate"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

var colorDisabled bool

// DisableColor turns off ANSI output for the rest of the process.
func DisableColor() {
	colorDisabled = true
}

// IsColorEnabled returns true if ANSI color codes should be emitted.
func IsColorEnabled() bool {
	if colorDisabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func verdictColor(v classify.Verdict) string {
	switch v {
	case classify.ManagedPackage:
		return colorGreen
	case classify.CuratedStore:
		return colorYellow
	case classify.Manual:
		return colorRed
	default:
		return colorGray
	}
}

// RenderAppTable renders the classified app listing, sorted by name
// (case-insensitive). Running apps carry a marker so the reader knows a
// migration would prompt for a quit.
func RenderAppTable(apps []scan.App) string {
	if len(apps) == 0 {
		return "No applications found.\n"
	}

	sorted := make([]scan.App, len(apps))
	copy(sorted, apps)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].DisplayName) < strings.ToLower(sorted[j].DisplayName)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %-14s %-10s %-10s %s\n",
		"Application", "Version", "Type", "Confidence", ""))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, app := range sorted {
		version := app.Version
		if version == "" {
			version = "—"
		}
		marker := ""
		if app.Running {
			marker = "running"
		}

		verdict := string(app.Provenance.Verdict)
		sb.WriteString(fmt.Sprintf("%-28s %-14s %s %-10s %s\n",
			truncate(app.DisplayName, 28),
			truncate(version, 14),
			padColored(verdictColor(app.Provenance.Verdict), verdict, 10),
			string(app.Provenance.Confidence),
			marker))
	}

	return sb.String()
}

// RenderAppSummary renders the one-line verdict breakdown under the app
// table, with percentages of the total.
func RenderAppSummary(apps []scan.App) string {
	counts := map[classify.Verdict]int{}
	for _, app := range apps {
		counts[app.Provenance.Verdict]++
	}
	total := len(apps)

	segment := func(color, label string, v classify.Verdict) string {
		n := counts[v]
		pct := 0
		if total > 0 {
			pct = n * 100 / total
		}
		return fmt.Sprintf("%s: %d (%d%%)", colorize(color, label), n, pct)
	}

	parts := []string{
		segment(colorGreen, "HOMEBREW", classify.ManagedPackage),
		segment(colorYellow, "APP STORE", classify.CuratedStore),
		segment(colorRed, "MANUAL", classify.Manual),
		segment(colorGray, "UNKNOWN", classify.Unknown),
	}
	return strings.Join(parts, " · ") + fmt.Sprintf(" · total %d", total)
}

// RenderPlanTable renders a dry-run plan: which apps have a cask candidate
// and which would prompt before proceeding.
func RenderPlanTable(records []*migrate.Record) string {
	if len(records) == 0 {
		return "No candidate applications.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %-26s %-7s %s\n",
		"Application", "Cask", "Score", "Status"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, rec := range records {
		cask := "—"
		score := "—"
		status := "no match"
		statusColor := colorGray

		if rec.Candidate != nil {
			cask = rec.Candidate.Entry.Token
			score = fmt.Sprintf("%.2f", rec.Candidate.Score)
			status = "ready"
			statusColor = colorGreen
			if rec.App.Running {
				status = "running"
				statusColor = colorYellow
			}
		}

		sb.WriteString(fmt.Sprintf("%-28s %-26s %-7s %s\n",
			truncate(rec.App.DisplayName, 28),
			truncate(cask, 26),
			score,
			colorize(statusColor, status)))
	}

	return sb.String()
}

// RenderReportTable renders the outcome of a migration run in run order,
// with a counts footer.
func RenderReportTable(report *migrate.Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %-26s %-10s %s\n",
		"Application", "Cask", "Outcome", "Details"))
	sb.WriteString(strings.Repeat("─", 80))
	sb.WriteString("\n")

	for _, rec := range report.Records {
		cask := "—"
		if rec.Candidate != nil {
			cask = rec.Candidate.Entry.Token
		}

		outcome, color := outcomeLabel(rec)
		sb.WriteString(fmt.Sprintf("%-28s %-26s %s %s\n",
			truncate(rec.App.DisplayName, 28),
			truncate(cask, 26),
			padColored(color, outcome, 10),
			recordDetails(rec)))
	}

	counts := report.Counts()
	sb.WriteString("\n")
	if report.DryRun {
		sb.WriteString(fmt.Sprintf("Planned: %d · No match: %d · Skipped: %d\n",
			counts.Planned, counts.NoCandidate, counts.Skipped))
	} else {
		sb.WriteString(fmt.Sprintf("Completed: %d · Failed: %d · Skipped: %d · No match: %d\n",
			counts.Completed, counts.Failed, counts.Skipped, counts.NoCandidate))
	}

	return sb.String()
}

func outcomeLabel(rec *migrate.Record) (string, string) {
	switch rec.State {
	case migrate.StateCompleted:
		return "completed", colorGreen
	case migrate.StateFailed:
		return "failed", colorRed
	case migrate.StateSkipped:
		return "skipped", colorYellow
	case migrate.StateNoCandidate:
		return "no match", colorGray
	case migrate.StateCandidateFound:
		return "planned", colorGreen
	default:
		return string(rec.State), colorGray
	}
}

func recordDetails(rec *migrate.Record) string {
	switch rec.State {
	case migrate.StateFailed:
		detail := fmt.Sprintf("%s: %s", rec.FailedStep, rec.Reason)
		if rec.Restored {
			detail += " (original restored)"
		}
		return detail
	case migrate.StateSkipped:
		return rec.Reason
	case migrate.StateCompleted:
		if rec.BackupPath != "" {
			return "backup retained"
		}
		return ""
	default:
		return ""
	}
}

// RenderBackupTable renders retained backups, newest first.
func RenderBackupTable(backups []*store.Backup) string {
	if len(backups) == 0 {
		return "No backups found.\n"
	}

	sorted := make([]*store.Backup, len(backups))
	copy(sorted, backups)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-26s %-15s %-10s %s\n",
		"ID", "Application", "Created", "Status", "Original Path"))
	sb.WriteString(strings.Repeat("─", 88))
	sb.WriteString("\n")

	for _, b := range sorted {
		status := "active"
		color := colorGreen
		switch {
		case b.RestoredAt != nil:
			status = "restored"
			color = colorGray
		case b.DiscardedAt != nil:
			status = "discarded"
			color = colorGray
		}

		sb.WriteString(fmt.Sprintf("%-5d %-26s %-15s %s %s\n",
			b.ID,
			truncate(b.AppName, 26),
			formatRelativeTime(b.CreatedAt),
			padColored(color, status, 10),
			truncate(b.OriginalPath, 40)))
	}

	return sb.String()
}

// RenderCacheStatus renders the cache status block: entry totals plus the
// cask catalog's freshness relative to now.
func RenderCacheStatus(stats *store.CacheStats, catalog *store.CacheEntry, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Cache entries:   %d\n", stats.Entries))
	sb.WriteString(fmt.Sprintf("Total size:      %s\n", formatSize(stats.TotalBytes)))

	if catalog == nil {
		sb.WriteString("Cask catalog:    not cached (fetched on next run)\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Catalog fetched: %s\n", formatRelativeTime(catalog.FetchedAt)))

	expires := catalog.ExpiresAt()
	if now.Before(expires) {
		sb.WriteString(fmt.Sprintf("Catalog status:  %s (expires in %s)\n",
			colorize(colorGreen, "fresh"), formatApproxDuration(expires.Sub(now))))
	} else {
		sb.WriteString(fmt.Sprintf("Catalog status:  %s (expired %s ago, refreshes on next run)\n",
			colorize(colorYellow, "stale"), formatApproxDuration(now.Sub(expires))))
	}

	return sb.String()
}

// padColored pads text to width before coloring, since ANSI escapes would
// otherwise count against the %-Ns column width.
func padColored(color, text string, width int) string {
	padded := fmt.Sprintf("%-*s", width, text)
	return colorize(color, padded)
}

// formatSize converts bytes to human-readable size (GB, MB, KB).
func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g. "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// formatApproxDuration renders a duration at the largest useful unit.
func formatApproxDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
