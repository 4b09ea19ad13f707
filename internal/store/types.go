package store

import "time"

// CacheEntry is one persisted provider lookup, keyed by catalog name or
// lookup query. The value payload is opaque to the store.
type CacheEntry struct {
	Key       string
	Value     []byte
	FetchedAt time.Time
	TTL       time.Duration
}

// ExpiresAt returns the instant this entry stops being servable.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.FetchedAt.Add(e.TTL)
}

// Migration is one finalized per-application migration outcome.
type Migration struct {
	ID         int64
	RunID      string
	AppName    string
	BundleID   string
	CaskToken  string
	Outcome    string // "completed", "failed", "skipped"
	FailedStep string
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Backup records an application bundle moved aside before its cask
// replacement was installed.
type Backup struct {
	ID           int64
	AppName      string
	BundleID     string
	OriginalPath string
	BackupPath   string
	ManifestPath string
	CreatedAt    time.Time
	RestoredAt   *time.Time
	DiscardedAt  *time.Time
}

// Active reports whether the backed-up bundle is still sitting in the
// backup directory (neither restored nor discarded).
func (b *Backup) Active() bool {
	return b.RestoredAt == nil && b.DiscardedAt == nil
}

// CacheStats summarizes the persisted cache for status output.
type CacheStats struct {
	Entries     int
	TotalBytes  int64
	OldestFetch time.Time
	NewestFetch time.Time
}
