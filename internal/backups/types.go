package backups

import (
	"time"

	"github.com/mac-tron/brewhaul/internal/store"
)

// Manifest is the JSON sidecar written next to each backed-up bundle, so a
// backup stays self-describing even without the database.
type Manifest struct {
	AppName      string    `json:"app_name"`
	BundleID     string    `json:"bundle_id,omitempty"`
	Version      string    `json:"version,omitempty"`
	OriginalPath string    `json:"original_path"`
	BackupPath   string    `json:"backup_path"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Request describes one bundle to move aside.
type Request struct {
	AppName  string
	BundleID string
	Version  string
	Path     string
	Reason   string
}

// Manager moves app bundles aside before migration and brings them back on
// demand.
type Manager struct {
	store     *store.Store
	backupDir string
}

// New creates a backup Manager rooted at the given directory.
func New(store *store.Store, backupDir string) *Manager {
	return &Manager{
		store:     store,
		backupDir: backupDir,
	}
}
