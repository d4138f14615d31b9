// Package sqlite provides SQLite-based persistent storage for capmap.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// SchemaVersion is recorded in the meta table by every migration run.
const SchemaVersion = "1"

// Meta keys.
const (
	MetaSchemaVersion = "schema_version"
	MetaInstanceID    = "instance_id"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Dataset snapshot. Each import replaces every row below.
		`CREATE TABLE IF NOT EXISTS dataset_imports (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			imported_at INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL,
			territories INTEGER NOT NULL,
			source      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_imports_at ON dataset_imports(imported_at)`,

		// Display names keyed by kind: territory, language, capacity.
		`CREATE TABLE IF NOT EXISTS names (
			kind TEXT NOT NULL,
			id   TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)`,

		// Flat counts keyed by kind: territory_users, language_users,
		// skill_available, skill_wanted.
		`CREATE TABLE IF NOT EXISTS counts (
			kind  TEXT NOT NULL,
			id    TEXT NOT NULL,
			value INTEGER NOT NULL CHECK (value >= 0),
			PRIMARY KEY (kind, id)
		)`,

		`CREATE TABLE IF NOT EXISTS territory_languages (
			territory_id TEXT NOT NULL,
			language_id  TEXT NOT NULL,
			users        INTEGER NOT NULL CHECK (users >= 0),
			PRIMARY KEY (territory_id, language_id)
		)`,

		`CREATE TABLE IF NOT EXISTS territory_capacities (
			territory_id TEXT NOT NULL,
			capacity_id  TEXT NOT NULL,
			available    INTEGER NOT NULL CHECK (available >= 0),
			wanted       INTEGER NOT NULL CHECK (wanted >= 0),
			PRIMARY KEY (territory_id, capacity_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return d.SetMeta(MetaSchemaVersion, SchemaVersion)
}

// ─── Meta ───────────────────────────────────────────────────────────────────

// SetMeta stores a key-value pair in meta.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetMeta retrieves a value from meta, or "" when unset.
func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// InstanceID returns the id of this state directory, generating and storing
// one on first use.
func (d *DB) InstanceID() (string, error) {
	id, err := d.GetMeta(MetaInstanceID)
	if err != nil || id != "" {
		return id, err
	}
	id = uuid.NewString()
	if _, err := d.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, MetaInstanceID, id); err != nil {
		return "", err
	}
	return d.GetMeta(MetaInstanceID)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
