package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mac-tron/brewhaul/internal/backups"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

// fakeCasks stands in for brew. Install marks the token installed and drops
// a bundle where the real cask would; Uninstall reverses both.
type fakeCasks struct {
	calls        []string
	installed    map[string]bool
	bundlePath   string
	installErr   error
	uninstallErr error
	checkErr     error
}

func newFakeCasks(bundlePath string) *fakeCasks {
	return &fakeCasks{installed: map[string]bool{}, bundlePath: bundlePath}
}

func (f *fakeCasks) InstallCask(ctx context.Context, token string) error {
	f.calls = append(f.calls, "install:"+token)
	if f.installErr != nil {
		return f.installErr
	}
	f.installed[token] = true
	if f.bundlePath != "" {
		if err := os.MkdirAll(filepath.Join(f.bundlePath, "Contents"), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCasks) UninstallCask(ctx context.Context, token string) error {
	f.calls = append(f.calls, "uninstall:"+token)
	if f.uninstallErr != nil {
		return f.uninstallErr
	}
	delete(f.installed, token)
	if f.bundlePath != "" {
		if err := os.RemoveAll(f.bundlePath); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCasks) CaskInstalled(ctx context.Context, token string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.installed[token], nil
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate() error {
	c.calls++
	return c.err
}

type execEnv struct {
	appsDir string
	casks   *fakeCasks
	manager *backups.Manager
	exec    *CaskExecutor
	app     scan.App
	entry   index.Entry
}

func newExecEnv(t *testing.T, opts ...ExecutorOption) *execEnv {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.CreateSchema())

	appsDir := t.TempDir()
	bundle := filepath.Join(appsDir, "Slack.app")
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "Contents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info"), []byte("plist"), 0o644))

	casks := newFakeCasks(bundle)
	manager := backups.New(st, filepath.Join(t.TempDir(), "backups"))
	opts = append([]ExecutorOption{WithAppsDir(appsDir)}, opts...)

	return &execEnv{
		appsDir: appsDir,
		casks:   casks,
		manager: manager,
		exec:    NewExecutor(casks, manager, opts...),
		app: scan.App{
			DisplayName: "Slack",
			Path:        bundle,
			BundleID:    "com.tinyspeck.slackmacgap",
			Version:     "4.39.95",
		},
		entry: index.Entry{Token: "slack", Name: "Slack", AppNames: []string{"Slack.app"}},
	}
}

func TestExecutorBackupMovesBundleAside(t *testing.T) {
	env := newExecEnv(t)

	backupPath, err := env.exec.Backup(context.Background(), env.app)
	require.NoError(t, err)

	assert.NoDirExists(t, env.app.Path)
	assert.FileExists(t, filepath.Join(backupPath, "Contents", "Info"))

	backup, err := env.manager.Latest("Slack")
	require.NoError(t, err)
	require.NotNil(t, backup)
	assert.Equal(t, backupPath, backup.BackupPath)
}

func TestExecutorInstallAndVerify(t *testing.T) {
	env := newExecEnv(t)
	ctx := context.Background()

	_, err := env.exec.Backup(ctx, env.app)
	require.NoError(t, err)
	require.NoError(t, env.exec.Install(ctx, env.app, env.entry))
	assert.Equal(t, []string{"install:slack"}, env.casks.calls)

	require.NoError(t, env.exec.Verify(ctx, env.app, env.entry))
}

func TestExecutorVerifyFailsWhenCaskNotRegistered(t *testing.T) {
	env := newExecEnv(t)

	err := env.exec.Verify(context.Background(), env.app, env.entry)
	assert.ErrorContains(t, err, "not registered")
}

func TestExecutorVerifyFailsWhenBundleMissing(t *testing.T) {
	env := newExecEnv(t)
	ctx := context.Background()

	env.casks.installed["slack"] = true
	require.NoError(t, os.RemoveAll(env.app.Path))

	err := env.exec.Verify(ctx, env.app, env.entry)
	assert.ErrorContains(t, err, "Slack.app")
}

func TestExecutorVerifySurfacesCheckError(t *testing.T) {
	env := newExecEnv(t)
	env.casks.checkErr = errors.New("brew exploded")

	err := env.exec.Verify(context.Background(), env.app, env.entry)
	assert.ErrorContains(t, err, "brew exploded")
}

func TestExecutorRestoreUninstallsFreshCask(t *testing.T) {
	env := newExecEnv(t)
	ctx := context.Background()

	backupPath, err := env.exec.Backup(ctx, env.app)
	require.NoError(t, err)
	require.NoError(t, env.exec.Install(ctx, env.app, env.entry))

	// The cask's copy occupies the original path; restore must clear it
	// before moving the original back.
	require.DirExists(t, env.app.Path)
	require.NoError(t, env.exec.Restore(ctx, env.app, env.entry, backupPath))

	assert.Contains(t, env.casks.calls, "uninstall:slack")
	assert.FileExists(t, filepath.Join(env.app.Path, "Contents", "Info"))

	backup, err := env.manager.Latest("Slack")
	require.NoError(t, err)
	assert.Nil(t, backup, "restored backups are no longer active")
}

func TestExecutorRestoreWithoutInstallSkipsUninstall(t *testing.T) {
	env := newExecEnv(t)
	ctx := context.Background()

	backupPath, err := env.exec.Backup(ctx, env.app)
	require.NoError(t, err)
	require.NoError(t, env.exec.Restore(ctx, env.app, env.entry, backupPath))

	assert.NotContains(t, env.casks.calls, "uninstall:slack")
	assert.FileExists(t, filepath.Join(env.app.Path, "Contents", "Info"))
}

func TestExecutorRestoreUnknownBackupPath(t *testing.T) {
	env := newExecEnv(t)

	err := env.exec.Restore(context.Background(), env.app, env.entry, "/nowhere")
	assert.ErrorContains(t, err, "no backup recorded")
}

func TestExecutorRemoveRetainsBackupByDefault(t *testing.T) {
	env := newExecEnv(t)
	ctx := context.Background()

	backupPath, err := env.exec.Backup(ctx, env.app)
	require.NoError(t, err)
	require.NoError(t, env.exec.Remove(ctx, env.app, backupPath))

	assert.FileExists(t, filepath.Join(backupPath, "Contents", "Info"))

	backup, err := env.manager.Latest("Slack")
	require.NoError(t, err)
	require.NotNil(t, backup, "retained backups stay restorable for undo")
}

func TestExecutorRemoveDiscardsWithoutRetention(t *testing.T) {
	env := newExecEnv(t, WithRetention(false))
	ctx := context.Background()

	backupPath, err := env.exec.Backup(ctx, env.app)
	require.NoError(t, err)
	require.NoError(t, env.exec.Remove(ctx, env.app, backupPath))

	assert.NoDirExists(t, backupPath)

	backup, err := env.manager.Latest("Slack")
	require.NoError(t, err)
	assert.Nil(t, backup)
}

func TestExecutorInstallInvalidatesCatalog(t *testing.T) {
	inv := &countingInvalidator{}
	env := newExecEnv(t, WithCatalog(inv))

	require.NoError(t, env.exec.Install(context.Background(), env.app, env.entry))
	assert.Equal(t, 1, inv.calls)
}

func TestExecutorInstallToleratesInvalidationFailure(t *testing.T) {
	inv := &countingInvalidator{err: errors.New("cache locked")}
	env := newExecEnv(t, WithCatalog(inv))

	assert.NoError(t, env.exec.Install(context.Background(), env.app, env.entry))
}
