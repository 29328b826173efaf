package db

import (
	"fmt"
	"log/slog"
)

// RPCAgent is one configured full-node endpoint: the primary the ingestion
// scheduler fetches from, or an attester it cross-checks block hashes
// against.
type RPCAgent struct {
	Name      string
	URL       string
	Auth      string
	IsPrimary bool
}

// SetAgent upserts a single RPC agent configuration.
func (d *DB) SetAgent(agent RPCAgent) error {
	slog.Info("setting rpc agent", "name", agent.Name, "primary", agent.IsPrimary)

	_, err := d.conn.Exec(
		`INSERT INTO rpc_agents (name, url, auth, is_primary, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET
		   url = excluded.url, auth = excluded.auth, is_primary = excluded.is_primary, updated_at = excluded.updated_at`,
		agent.Name, agent.URL, agent.Auth, agent.IsPrimary,
	)
	if err != nil {
		return fmt.Errorf("set rpc agent %q: %w", agent.Name, err)
	}
	return nil
}

// ListAgents returns every configured RPC agent, primary first.
func (d *DB) ListAgents() ([]RPCAgent, error) {
	rows, err := d.conn.Query("SELECT name, url, auth, is_primary FROM rpc_agents ORDER BY is_primary DESC, name")
	if err != nil {
		return nil, fmt.Errorf("query rpc agents: %w", err)
	}
	defer rows.Close()

	var out []RPCAgent
	for rows.Next() {
		var a RPCAgent
		if err := rows.Scan(&a.Name, &a.URL, &a.Auth, &a.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan rpc agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
