// Package db holds the admin/audit bookkeeping that sits alongside the
// bbolt-backed chain and minter state: the manager principal set, the
// configured RPC agents, and an append-only audit log of admin calls.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB connection with application-specific methods.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens a SQLite database at path with WAL mode and a busy timeout,
// creating its parent directory and schema if absent.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{conn: conn, path: path}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	slog.Info("closing admin database", "path", d.path)
	return d.conn.Close()
}

// migrate creates every table this package owns if it does not already
// exist. There is exactly one schema version; a real migration runner is
// unwarranted for three small, additive tables.
func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS managers (
			principal TEXT PRIMARY KEY,
			added_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS rpc_agents (
			name       TEXT PRIMARY KEY,
			url        TEXT NOT NULL,
			auth       TEXT NOT NULL DEFAULT '',
			is_primary INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS admin_audit (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			action    TEXT NOT NULL,
			caller    TEXT NOT NULL,
			detail    TEXT NOT NULL DEFAULT '',
			at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("run schema statement: %w", err)
		}
	}
	return nil
}
