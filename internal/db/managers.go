package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// IsManager reports whether principal is in the manager set.
func (d *DB) IsManager(principal string) (bool, error) {
	var found int
	err := d.conn.QueryRow("SELECT 1 FROM managers WHERE principal = ?", principal).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check manager %q: %w", principal, err)
	}
	return true, nil
}

// SetManagers replaces the entire manager set atomically.
func (d *DB) SetManagers(principals []string) error {
	slog.Info("setting managers", "count", len(principals))

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM managers"); err != nil {
		return fmt.Errorf("clear managers: %w", err)
	}
	for _, p := range principals {
		if _, err := tx.Exec("INSERT INTO managers (principal) VALUES (?)", p); err != nil {
			return fmt.Errorf("insert manager %q: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit managers: %w", err)
	}
	return nil
}

// ListManagers returns the current manager set.
func (d *DB) ListManagers() ([]string, error) {
	rows, err := d.conn.Query("SELECT principal FROM managers ORDER BY principal")
	if err != nil {
		return nil, fmt.Errorf("query managers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan manager row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
