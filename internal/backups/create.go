package backups

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mac-tron/brewhaul/internal/store"
)

// Backup moves the bundle into the backup directory, writes its manifest,
// and records the row. The bundle is moved, not copied, so the original
// location is free for the replacement install.
func (m *Manager) Backup(req Request) (*store.Backup, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Backup filename: YYYY-MM-DD-HHMMSS-<bundle>, newest sorts last.
	timestamp := time.Now().Format("2006-01-02-150405")
	backupPath := filepath.Join(m.backupDir, fmt.Sprintf("%s-%s", timestamp, filepath.Base(req.Path)))

	if err := os.Rename(req.Path, backupPath); err != nil {
		return nil, fmt.Errorf("failed to move %s aside: %w", req.Path, err)
	}

	manifestPath := backupPath + ".json"
	manifest := Manifest{
		AppName:      req.AppName,
		BundleID:     req.BundleID,
		Version:      req.Version,
		OriginalPath: req.Path,
		BackupPath:   backupPath,
		Reason:       req.Reason,
		CreatedAt:    time.Now(),
	}

	jsonData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		m.undoMove(backupPath, req.Path)
		return nil, fmt.Errorf("failed to marshal backup manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, jsonData, 0644); err != nil {
		m.undoMove(backupPath, req.Path)
		return nil, fmt.Errorf("failed to write backup manifest: %w", err)
	}

	backup := &store.Backup{
		AppName:      req.AppName,
		BundleID:     req.BundleID,
		OriginalPath: req.Path,
		BackupPath:   backupPath,
		ManifestPath: manifestPath,
		CreatedAt:    time.Now(),
	}

	id, err := m.store.InsertBackup(backup)
	if err != nil {
		// Put the bundle back so a database problem leaves the system
		// exactly as it was.
		os.Remove(manifestPath)
		m.undoMove(backupPath, req.Path)
		return nil, fmt.Errorf("failed to record backup: %w", err)
	}
	backup.ID = id

	return backup, nil
}

func (m *Manager) undoMove(backupPath, originalPath string) {
	if err := os.Rename(backupPath, originalPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to move %s back to %s: %v\n", backupPath, originalPath, err)
	}
}

// ReadManifest loads the sidecar for a backup.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse backup manifest: %w", err)
	}
	return &manifest, nil
}
