package scan

import (
	"context"

	"github.com/mac-tron/brewhaul/internal/classify"
)

// App is one installed application bundle with everything a single run
// learned about it.
type App struct {
	DisplayName string
	Path        string
	BundleID    string
	Version     string
	SigningID   string
	Running     bool
	Provenance  classify.Classification
}

// Ref returns the app's identity for provenance checks.
func (a App) Ref() classify.AppRef {
	return classify.AppRef{
		DisplayName: a.DisplayName,
		BundleID:    a.BundleID,
		Path:        a.Path,
		Version:     a.Version,
	}
}

// runner executes a command and returns its output. Swapped out in tests.
type runner interface {
	run(ctx context.Context, name string, args ...string) ([]byte, error)
	runCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}
