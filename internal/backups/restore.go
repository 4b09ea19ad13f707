package backups

import (
	"fmt"
	"os"
	"time"

	"github.com/mac-tron/brewhaul/internal/store"
)

// Restore moves a backed-up bundle back to its original location and marks
// the row. Restoring refuses to overwrite whatever now occupies the
// original path.
func (m *Manager) Restore(backup *store.Backup) error {
	if !backup.Active() {
		return fmt.Errorf("backup %d for %s was already restored or discarded", backup.ID, backup.AppName)
	}

	if _, err := os.Stat(backup.OriginalPath); err == nil {
		return fmt.Errorf("cannot restore %s: %s already exists", backup.AppName, backup.OriginalPath)
	}

	if err := os.Rename(backup.BackupPath, backup.OriginalPath); err != nil {
		return fmt.Errorf("failed to restore %s: %w", backup.AppName, err)
	}

	if err := m.store.MarkBackupRestored(backup.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to record restore: %w", err)
	}

	// The manifest described the retained copy; it has nothing to describe
	// now.
	os.Remove(backup.ManifestPath)

	return nil
}

// Discard deletes the retained copy and marks the row. The database row
// stays as an audit record.
func (m *Manager) Discard(backup *store.Backup) error {
	if !backup.Active() {
		return fmt.Errorf("backup %d for %s was already restored or discarded", backup.ID, backup.AppName)
	}

	if err := os.RemoveAll(backup.BackupPath); err != nil {
		return fmt.Errorf("failed to delete backup copy %s: %w", backup.BackupPath, err)
	}
	os.Remove(backup.ManifestPath)

	if err := m.store.MarkBackupDiscarded(backup.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to record discard: %w", err)
	}

	return nil
}

// Latest returns the newest active backup for an app, or nil when there is
// none.
func (m *Manager) Latest(appName string) (*store.Backup, error) {
	backup, err := m.store.GetLatestBackup(appName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up backup for %s: %w", appName, err)
	}
	return backup, nil
}

// ListActive returns every backup still holding a retained copy.
func (m *Manager) ListActive() ([]*store.Backup, error) {
	active, err := m.store.ListActiveBackups()
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return active, nil
}

// CleanupOlderThan discards active backups created before the given age and
// returns how many were removed.
func (m *Manager) CleanupOlderThan(age time.Duration) (int, error) {
	active, err := m.store.ListActiveBackups()
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}

	cutoff := time.Now().Add(-age)
	discarded := 0
	for _, backup := range active {
		if backup.CreatedAt.Before(cutoff) {
			if err := m.Discard(backup); err != nil {
				return discarded, err
			}
			discarded++
		}
	}

	return discarded, nil
}
