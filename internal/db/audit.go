package db

import (
	"fmt"
	"log/slog"
)

// LogAdminAction appends an entry to the admin audit trail: action is the
// admin call name (e.g. "set_managers"), caller its principal, detail a
// short human-readable summary of what changed.
func (d *DB) LogAdminAction(action, caller, detail string) error {
	slog.Info("admin action", "action", action, "caller", caller, "detail", detail)

	_, err := d.conn.Exec(
		"INSERT INTO admin_audit (action, caller, detail) VALUES (?, ?, ?)",
		action, caller, detail,
	)
	if err != nil {
		return fmt.Errorf("log admin action %q: %w", action, err)
	}
	return nil
}

// AdminAuditEntry is one row of the admin audit trail.
type AdminAuditEntry struct {
	ID     int64
	Action string
	Caller string
	Detail string
	At     string
}

// ListAdminAudit returns the most recent audit entries, newest first,
// capped at limit.
func (d *DB) ListAdminAudit(limit int) ([]AdminAuditEntry, error) {
	rows, err := d.conn.Query("SELECT id, action, caller, detail, at FROM admin_audit ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query admin audit: %w", err)
	}
	defer rows.Close()

	var out []AdminAuditEntry
	for rows.Next() {
		var e AdminAuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Caller, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan admin audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
