package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mac-tron/brewhaul/internal/classify"
)

// scriptedProvider answers evidence checks from fixed tables keyed by
// display name.
type scriptedProvider struct {
	registry map[string]bool
	receipts map[string]string
}

func (p *scriptedProvider) RegistryContains(_ context.Context, ref classify.AppRef) (bool, error) {
	return p.registry[ref.DisplayName], nil
}

func (p *scriptedProvider) Receipt(_ context.Context, ref classify.AppRef) (string, error) {
	return p.receipts[ref.DisplayName], nil
}

func (p *scriptedProvider) ValidateReceipt(_ context.Context, _ classify.AppRef) (classify.Validity, error) {
	return classify.ValidityConfirmed, nil
}

func (p *scriptedProvider) SigningIdentity(_ context.Context, _ classify.AppRef) (string, error) {
	return "", nil
}

func newScanDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, bundle := range []string{"Slack.app", "Rectangle.app", "Pages.app"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, bundle, "Contents"), 0o755))
	}
	// Below the noise a scan must ignore: a plain file and a non-app dir.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Utilities"), 0o755))
	return dir
}

// quietTools answers metadata and process checks without shelling out.
func quietTools() runnerFunc {
	return func(name string, args []string) ([]byte, error) {
		switch name {
		case "mdls":
			if args[1] == "kMDItemVersion" {
				return []byte("1.0\n"), nil
			}
			bundle := filepath.Base(args[len(args)-1])
			return []byte("com.example." + CleanAppName(bundle) + "\n"), nil
		case "osascript":
			return []byte("0\n"), nil
		}
		return nil, errors.New("unexpected command: " + name)
	}
}

func newTestScanner(t *testing.T, dir string, provider classify.EvidenceProvider, opts ...Option) *Scanner {
	t.Helper()
	s := NewScanner(dir, provider, opts...)
	s.meta = &metadata{run: quietTools()}
	s.procs = &Processes{run: quietTools()}
	return s
}

func TestScanClassifiesAndSorts(t *testing.T) {
	dir := newScanDir(t)
	provider := &scriptedProvider{
		registry: map[string]bool{"Slack": true},
		receipts: map[string]string{"Pages": "/Applications/Pages.app/Contents/_MASReceipt/receipt"},
	}

	apps, err := newTestScanner(t, dir, provider).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 3, "only .app bundles are scanned")

	assert.Equal(t, "Pages", apps[0].DisplayName)
	assert.Equal(t, "Rectangle", apps[1].DisplayName)
	assert.Equal(t, "Slack", apps[2].DisplayName)

	assert.Equal(t, classify.CuratedStore, apps[0].Provenance.Verdict)
	assert.Equal(t, classify.High, apps[0].Provenance.Confidence)
	assert.Equal(t, classify.Manual, apps[1].Provenance.Verdict)
	assert.Equal(t, classify.ManagedPackage, apps[2].Provenance.Verdict)

	assert.Equal(t, "com.example.Slack", apps[2].BundleID)
	assert.Equal(t, filepath.Join(dir, "Slack.app"), apps[2].Path)
	assert.False(t, apps[2].Running)
}

func TestScanOrderIsStableUnderConcurrency(t *testing.T) {
	dir := newScanDir(t)
	provider := &scriptedProvider{registry: map[string]bool{}}

	for _, workers := range []int{1, 3, 8} {
		apps, err := newTestScanner(t, dir, provider, WithWorkers(workers)).Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, apps, 3, "workers=%d", workers)
		assert.Equal(t, "Pages", apps[0].DisplayName, "workers=%d", workers)
		assert.Equal(t, "Slack", apps[2].DisplayName, "workers=%d", workers)
	}
}

func TestScanUnreadableDirIsFatal(t *testing.T) {
	provider := &scriptedProvider{}
	s := newTestScanner(t, "/nonexistent/applications", provider)

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read applications directory")
}

func TestScanSurvivesMetadataFailures(t *testing.T) {
	dir := newScanDir(t)
	provider := &scriptedProvider{}

	s := newTestScanner(t, dir, provider)
	s.meta = &metadata{run: runnerFunc(func(name string, args []string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})}

	apps, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 3)
	for _, app := range apps {
		assert.Empty(t, app.BundleID)
		assert.NotEmpty(t, app.DisplayName)
	}
}

func TestFilter(t *testing.T) {
	apps := []App{
		{DisplayName: "Slack", Provenance: classify.Classification{Verdict: classify.ManagedPackage}},
		{DisplayName: "Rectangle", Provenance: classify.Classification{Verdict: classify.Manual}},
		{DisplayName: "Pages", Provenance: classify.Classification{Verdict: classify.CuratedStore}},
	}

	manual := Filter(apps, []classify.Verdict{classify.Manual})
	require.Len(t, manual, 1)
	assert.Equal(t, "Rectangle", manual[0].DisplayName)

	both := Filter(apps, []classify.Verdict{classify.Manual, classify.CuratedStore})
	assert.Len(t, both, 2)

	assert.Len(t, Filter(apps, nil), 3)
}
