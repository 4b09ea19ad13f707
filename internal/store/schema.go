package store

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    fetched_at TIMESTAMP NOT NULL,
    ttl_seconds INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS migrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    app_name TEXT NOT NULL,
    bundle_id TEXT,
    cask_token TEXT,
    outcome TEXT NOT NULL,
    failed_step TEXT,
    reason TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS backups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_name TEXT NOT NULL,
    bundle_id TEXT,
    original_path TEXT NOT NULL,
    backup_path TEXT NOT NULL,
    manifest_path TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    restored_at TIMESTAMP,
    discarded_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cache_fetched ON cache_entries(fetched_at);
CREATE INDEX IF NOT EXISTS idx_migrations_run ON migrations(run_id);
CREATE INDEX IF NOT EXISTS idx_migrations_app ON migrations(app_name);
CREATE INDEX IF NOT EXISTS idx_backups_app ON backups(app_name);
CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created_at);
`
