package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Cache entry operations

// PutCacheEntry inserts or replaces a cache entry.
func (s *Store) PutCacheEntry(entry *CacheEntry) error {
	query := `
		INSERT OR REPLACE INTO cache_entries (key, value, fetched_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		entry.Key,
		entry.Value,
		entry.FetchedAt.Format(time.RFC3339),
		int64(entry.TTL.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to put cache entry %s: %w", entry.Key, wrapSchemaErr(err))
	}

	return nil
}

// GetCacheEntry retrieves a cache entry by key.
// Returns nil (not an error) when the key has never been cached.
func (s *Store) GetCacheEntry(key string) (*CacheEntry, error) {
	query := `
		SELECT key, value, fetched_at, ttl_seconds
		FROM cache_entries
		WHERE key = ?
	`

	var entry CacheEntry
	var fetchedAt string
	var ttlSeconds int64

	err := s.db.QueryRow(query, key).Scan(
		&entry.Key,
		&entry.Value,
		&fetchedAt,
		&ttlSeconds,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry %s: %w", key, wrapSchemaErr(err))
	}

	entry.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at for %s: %w", key, err)
	}
	entry.TTL = time.Duration(ttlSeconds) * time.Second

	return &entry, nil
}

// DeleteCacheEntry removes a cache entry. Deleting an absent key is not an
// error; invalidation must be idempotent.
func (s *Store) DeleteCacheEntry(key string) error {
	query := `DELETE FROM cache_entries WHERE key = ?`
	if _, err := s.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, wrapSchemaErr(err))
	}
	return nil
}

// ClearCache removes all cache entries and returns how many were dropped.
func (s *Store) ClearCache() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", wrapSchemaErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// GetCacheStats returns entry count, total payload size and fetch-time range.
func (s *Store) GetCacheStats() (*CacheStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0),
		       COALESCE(MIN(fetched_at), ''), COALESCE(MAX(fetched_at), '')
		FROM cache_entries
	`

	var stats CacheStats
	var oldest, newest string

	err := s.db.QueryRow(query).Scan(&stats.Entries, &stats.TotalBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to get cache stats: %w", wrapSchemaErr(err))
	}

	if oldest != "" {
		stats.OldestFetch, err = time.Parse(time.RFC3339, oldest)
		if err != nil {
			return nil, fmt.Errorf("failed to parse oldest fetch time: %w", err)
		}
	}
	if newest != "" {
		stats.NewestFetch, err = time.Parse(time.RFC3339, newest)
		if err != nil {
			return nil, fmt.Errorf("failed to parse newest fetch time: %w", err)
		}
	}

	return &stats, nil
}

// Migration history operations

// InsertMigration records a finalized migration outcome and returns its ID.
func (s *Store) InsertMigration(m *Migration) (int64, error) {
	query := `
		INSERT INTO migrations
		(run_id, app_name, bundle_id, cask_token, outcome, failed_step, reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		m.RunID,
		m.AppName,
		m.BundleID,
		m.CaskToken,
		m.Outcome,
		m.FailedStep,
		m.Reason,
		m.StartedAt.Format(time.RFC3339),
		m.FinishedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert migration for %s: %w", m.AppName, wrapSchemaErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get migration ID: %w", err)
	}

	return id, nil
}

// ListMigrations returns recorded migrations, newest first, capped at limit.
// A limit of 0 returns everything.
func (s *Store) ListMigrations(limit int) ([]*Migration, error) {
	query := `
		SELECT id, run_id, app_name, bundle_id, cask_token, outcome, failed_step, reason, started_at, finished_at
		FROM migrations
		ORDER BY finished_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", wrapSchemaErr(err))
	}
	defer rows.Close()

	var migrations []*Migration
	for rows.Next() {
		var m Migration
		var startedAt, finishedAt string

		err := rows.Scan(
			&m.ID,
			&m.RunID,
			&m.AppName,
			&m.BundleID,
			&m.CaskToken,
			&m.Outcome,
			&m.FailedStep,
			&m.Reason,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		m.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", m.AppName, err)
		}
		m.FinishedAt, err = time.Parse(time.RFC3339, finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for %s: %w", m.AppName, err)
		}

		migrations = append(migrations, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migrations: %w", err)
	}

	return migrations, nil
}

// Backup operations

// InsertBackup records a moved-aside bundle and returns its ID.
func (s *Store) InsertBackup(b *Backup) (int64, error) {
	query := `
		INSERT INTO backups
		(app_name, bundle_id, original_path, backup_path, manifest_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		b.AppName,
		b.BundleID,
		b.OriginalPath,
		b.BackupPath,
		b.ManifestPath,
		b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert backup for %s: %w", b.AppName, wrapSchemaErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get backup ID: %w", err)
	}

	return id, nil
}

// GetLatestBackup returns the most recent active backup for an app name,
// or nil when none exists.
func (s *Store) GetLatestBackup(appName string) (*Backup, error) {
	query := `
		SELECT id, app_name, bundle_id, original_path, backup_path, manifest_path, created_at, restored_at, discarded_at
		FROM backups
		WHERE app_name = ? AND restored_at IS NULL AND discarded_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	b, err := scanBackup(s.db.QueryRow(query, appName))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest backup for %s: %w", appName, wrapSchemaErr(err))
	}

	return b, nil
}

// ListActiveBackups returns all backups still sitting in the backup
// directory, newest first.
func (s *Store) ListActiveBackups() ([]*Backup, error) {
	query := `
		SELECT id, app_name, bundle_id, original_path, backup_path, manifest_path, created_at, restored_at, discarded_at
		FROM backups
		WHERE restored_at IS NULL AND discarded_at IS NULL
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", wrapSchemaErr(err))
	}
	defer rows.Close()

	var backups []*Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		backups = append(backups, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}

	return backups, nil
}

// MarkBackupRestored stamps a backup as moved back to its original path.
func (s *Store) MarkBackupRestored(id int64, at time.Time) error {
	return s.markBackup(id, "restored_at", at)
}

// MarkBackupDiscarded stamps a backup as deleted from the backup directory.
func (s *Store) MarkBackupDiscarded(id int64, at time.Time) error {
	return s.markBackup(id, "discarded_at", at)
}

func (s *Store) markBackup(id int64, column string, at time.Time) error {
	// column is one of two fixed names, never user input
	query := fmt.Sprintf(`UPDATE backups SET %s = ? WHERE id = ?`, column)

	result, err := s.db.Exec(query, at.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark backup %d: %w", id, wrapSchemaErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("backup %d not found", id)
	}

	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row rowScanner) (*Backup, error) {
	var b Backup
	var createdAt string
	var restoredAt, discardedAt sql.NullString

	err := row.Scan(
		&b.ID,
		&b.AppName,
		&b.BundleID,
		&b.OriginalPath,
		&b.BackupPath,
		&b.ManifestPath,
		&createdAt,
		&restoredAt,
		&discardedAt,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", b.AppName, err)
	}

	if restoredAt.Valid {
		t, err := time.Parse(time.RFC3339, restoredAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse restored_at for %s: %w", b.AppName, err)
		}
		b.RestoredAt = &t
	}
	if discardedAt.Valid {
		t, err := time.Parse(time.RFC3339, discardedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse discarded_at for %s: %w", b.AppName, err)
		}
		b.DiscardedAt = &t
	}

	return &b, nil
}
