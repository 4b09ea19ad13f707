// Package config resolves brewhaul's settings from defaults, an optional
// config file, and BREWHAUL_* environment variables. Command flags override
// all of them at the command layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/mac-tron/brewhaul/internal/index"
	"github.com/mac-tron/brewhaul/internal/scan"
)

// Settings is the resolved configuration for a brewhaul run.
type Settings struct {
	AppsDir       string
	DBPath        string
	BackupDir     string
	CatalogURL    string
	CacheTTL      time.Duration
	Workers       int
	RetainBackups bool
}

// Dir returns brewhaul's data directory (~/.brewhaul), creating it if
// needed.
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".brewhaul")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create brewhaul directory: %w", err)
	}
	return dir, nil
}

// Load resolves settings. cfgFile overrides the default ~/.brewhaul.yaml;
// the default file may be absent, an explicitly named one must exist, and a
// malformed file is an error either way.
func Load(cfgFile string) (*Settings, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("apps_dir", scan.DefaultAppsDir)
	v.SetDefault("db_path", filepath.Join(dir, "brewhaul.db"))
	v.SetDefault("backup_dir", filepath.Join(dir, "backups"))
	v.SetDefault("catalog_url", index.DefaultCatalogURL)
	v.SetDefault("cache_ttl", "24h")
	v.SetDefault("workers", scan.DefaultWorkers)
	v.SetDefault("retain_backups", true)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, herr := homedir.Dir(); herr == nil {
		v.SetConfigFile(filepath.Join(home, ".brewhaul.yaml"))
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BREWHAUL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !os.IsNotExist(err) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	ttl := v.GetDuration("cache_ttl")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	workers := v.GetInt("workers")
	if workers <= 0 {
		workers = scan.DefaultWorkers
	}

	s := &Settings{
		AppsDir:       v.GetString("apps_dir"),
		DBPath:        v.GetString("db_path"),
		BackupDir:     v.GetString("backup_dir"),
		CatalogURL:    v.GetString("catalog_url"),
		CacheTTL:      ttl,
		Workers:       workers,
		RetainBackups: v.GetBool("retain_backups"),
	}

	// Paths from the config file or environment may use ~ shorthand.
	for _, p := range []*string{&s.AppsDir, &s.DBPath, &s.BackupDir} {
		if expanded, xerr := homedir.Expand(*p); xerr == nil {
			*p = expanded
		}
	}
	return s, nil
}
