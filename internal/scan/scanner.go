// Package scan enumerates installed application bundles and classifies
// their provenance.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mac-tron/brewhaul/internal/classify"
)

const (
	// DefaultAppsDir is where macOS keeps user-visible applications.
	DefaultAppsDir = "/Applications"

	// DefaultWorkers bounds how many apps are classified concurrently.
	// Each app costs a handful of process spawns, so a small pool keeps
	// the scan quick without stampeding the system.
	DefaultWorkers = 4
)

// Scanner walks an applications directory and produces one classified App
// per bundle.
type Scanner struct {
	dir      string
	provider classify.EvidenceProvider
	meta     *metadata
	procs    *Processes
	workers  int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets the concurrency of the scan.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewScanner builds a scanner over the given directory.
func NewScanner(dir string, provider classify.EvidenceProvider, opts ...Option) *Scanner {
	s := &Scanner{
		dir:      dir,
		provider: provider,
		meta:     newMetadata(),
		procs:    NewProcesses(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns every app bundle in the directory, classified, in name
// order. An unreadable directory is fatal; a bundle that resists metadata
// extraction is still reported with the fields it yielded.
func (s *Scanner) Scan(ctx context.Context) ([]App, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read applications directory %s: %w", s.dir, err)
	}

	var bundles []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".app") {
			bundles = append(bundles, entry.Name())
		}
	}
	sort.Strings(bundles)

	// Each worker writes only its own index, so the result order stays
	// deterministic regardless of scheduling.
	apps := make([]App, len(bundles))
	tasks := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				apps[i] = s.scanOne(ctx, bundles[i])
			}
		}()
	}

	for i := range bundles {
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	return apps, nil
}

// scanOne gathers metadata and evidence for a single bundle. Metadata
// failures leave fields empty rather than dropping the app.
func (s *Scanner) scanOne(ctx context.Context, bundleName string) App {
	app := App{
		DisplayName: CleanAppName(bundleName),
		Path:        filepath.Join(s.dir, bundleName),
	}

	app.BundleID, _ = s.meta.BundleID(ctx, app.Path)
	app.Version, _ = s.meta.Version(ctx, app.Path)

	ev := classify.Gather(ctx, s.provider, app.Ref())
	app.SigningID = ev.SigningID
	app.Provenance = classify.Classify(ev)

	app.Running, _ = s.procs.Running(ctx, app.DisplayName)

	return app
}

// Filter returns the apps whose verdict is in the given set. An empty set
// keeps everything.
func Filter(apps []App, verdicts []classify.Verdict) []App {
	if len(verdicts) == 0 {
		return apps
	}

	keep := make(map[classify.Verdict]bool, len(verdicts))
	for _, v := range verdicts {
		keep[v] = true
	}

	var filtered []App
	for _, app := range apps {
		if keep[app.Provenance.Verdict] {
			filtered = append(filtered, app)
		}
	}
	return filtered
}
