package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mac-tron/brewhaul/internal/backups"
	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/scan"
	"github.com/mac-tron/brewhaul/internal/store"
)

// Executor performs the physical steps of one migration. The planner drives
// it strictly in order: Backup, Install, Verify, Remove, with Restore as the
// rollback after a failed Install or Verify.
type Executor interface {
	Backup(ctx context.Context, app scan.App) (string, error)
	Install(ctx context.Context, app scan.App, entry index.Entry) error
	Verify(ctx context.Context, app scan.App, entry index.Entry) error
	Restore(ctx context.Context, app scan.App, entry index.Entry, backupPath string) error
	Remove(ctx context.Context, app scan.App, backupPath string) error
}

// CaskClient is the slice of the brew client the executor needs.
type CaskClient interface {
	InstallCask(ctx context.Context, token string) error
	UninstallCask(ctx context.Context, token string) error
	CaskInstalled(ctx context.Context, token string) (bool, error)
}

// BundleArchiver moves application bundles aside and back.
type BundleArchiver interface {
	Backup(req backups.Request) (*store.Backup, error)
	Restore(b *store.Backup) error
	Discard(b *store.Backup) error
}

// CatalogInvalidator drops the cached cask catalog after brew mutations.
type CatalogInvalidator interface {
	Invalidate() error
}

// CaskExecutor migrates apps by installing their Homebrew cask replacements.
type CaskExecutor struct {
	casks   CaskClient
	archive BundleArchiver
	catalog CatalogInvalidator
	appsDir string
	retain  bool
	reason  string

	mu        sync.Mutex
	backups   map[string]*store.Backup
	installed map[string]bool
}

// ExecutorOption configures a CaskExecutor.
type ExecutorOption func(*CaskExecutor)

// WithAppsDir sets the directory the replacement bundle is expected in.
func WithAppsDir(dir string) ExecutorOption {
	return func(e *CaskExecutor) { e.appsDir = dir }
}

// WithRetention controls whether Remove keeps the moved-aside bundle.
// Retained backups stay restorable through the undo command.
func WithRetention(retain bool) ExecutorOption {
	return func(e *CaskExecutor) { e.retain = retain }
}

// WithCatalog wires catalog invalidation to run after installs.
func WithCatalog(c CatalogInvalidator) ExecutorOption {
	return func(e *CaskExecutor) { e.catalog = c }
}

// WithBackupReason sets the reason recorded in backup manifests.
func WithBackupReason(reason string) ExecutorOption {
	return func(e *CaskExecutor) { e.reason = reason }
}

// NewExecutor builds an executor over the brew client and backup manager.
func NewExecutor(casks CaskClient, archive BundleArchiver, opts ...ExecutorOption) *CaskExecutor {
	e := &CaskExecutor{
		casks:     casks,
		archive:   archive,
		appsDir:   scan.DefaultAppsDir,
		retain:    true,
		reason:    "migration",
		backups:   make(map[string]*store.Backup),
		installed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backup moves the app bundle into the backup directory before anything
// destructive happens. The returned path identifies the backup to the
// Restore and Remove steps.
func (e *CaskExecutor) Backup(ctx context.Context, app scan.App) (string, error) {
	backup, err := e.archive.Backup(backups.Request{
		AppName:  app.DisplayName,
		BundleID: app.BundleID,
		Version:  app.Version,
		Path:     app.Path,
		Reason:   e.reason,
	})
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.backups[backup.BackupPath] = backup
	e.mu.Unlock()
	return backup.BackupPath, nil
}

// Install installs the cask replacing the app.
func (e *CaskExecutor) Install(ctx context.Context, app scan.App, entry index.Entry) error {
	if err := e.casks.InstallCask(ctx, entry.Token); err != nil {
		return err
	}

	e.mu.Lock()
	e.installed[entry.Token] = true
	e.mu.Unlock()

	if e.catalog != nil {
		if err := e.catalog.Invalidate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to invalidate cask catalog cache: %v\n", err)
		}
	}
	return nil
}

// Verify confirms the replacement is actually in place: the cask shows up in
// brew's installed list and the bundle exists where the cask puts it.
func (e *CaskExecutor) Verify(ctx context.Context, app scan.App, entry index.Entry) error {
	installed, err := e.casks.CaskInstalled(ctx, entry.Token)
	if err != nil {
		return fmt.Errorf("failed to confirm cask %s is installed: %w", entry.Token, err)
	}
	if !installed {
		return fmt.Errorf("cask %s is not registered as installed after install", entry.Token)
	}

	bundle := e.expectedBundle(app, entry)
	info, err := os.Stat(bundle)
	if err != nil {
		return fmt.Errorf("expected %s after installing cask %s: %w", bundle, entry.Token, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("expected %s to be an application bundle", bundle)
	}
	return nil
}

// Restore rolls a failed migration back. If this run's install got far enough
// to register the cask, the cask is uninstalled first so its copy of the
// bundle does not block moving the original back.
func (e *CaskExecutor) Restore(ctx context.Context, app scan.App, entry index.Entry, backupPath string) error {
	backup := e.backupFor(backupPath)
	if backup == nil {
		return fmt.Errorf("no backup recorded at %s", backupPath)
	}

	e.mu.Lock()
	attempted := e.installed[entry.Token]
	e.mu.Unlock()
	if attempted {
		installed, err := e.casks.CaskInstalled(ctx, entry.Token)
		if err != nil || installed {
			if err := e.casks.UninstallCask(ctx, entry.Token); err != nil {
				return fmt.Errorf("failed to uninstall cask %s before restore: %w", entry.Token, err)
			}
		}
		e.mu.Lock()
		delete(e.installed, entry.Token)
		e.mu.Unlock()
	}

	return e.archive.Restore(backup)
}

// Remove finishes a verified migration. With retention on the moved-aside
// bundle stays in the backup directory as the undo window; otherwise the
// copy is deleted.
func (e *CaskExecutor) Remove(ctx context.Context, app scan.App, backupPath string) error {
	backup := e.backupFor(backupPath)
	if backup == nil {
		return fmt.Errorf("no backup recorded at %s", backupPath)
	}
	if e.retain {
		return nil
	}
	return e.archive.Discard(backup)
}

func (e *CaskExecutor) backupFor(path string) *store.Backup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backups[path]
}

// expectedBundle is where the installed cask should have put the app. Cask
// artifact names are authoritative; the original bundle name is the fallback
// for entries whose artifact list did not parse.
func (e *CaskExecutor) expectedBundle(app scan.App, entry index.Entry) string {
	name := filepath.Base(app.Path)
	if len(entry.AppNames) > 0 {
		name = entry.AppNames[0]
	}
	return filepath.Join(e.appsDir, name)
}
