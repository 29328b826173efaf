package db

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.sqlite")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file to exist: %v", err)
	}

	var mode string
	if err := d.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}

	for _, table := range []string{"managers", "rpc_agents", "admin_audit"} {
		var name string
		err := d.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestManagers_SetAndList(t *testing.T) {
	d := setupTestDB(t)

	if err := d.SetManagers([]string{"alice", "bob"}); err != nil {
		t.Fatalf("SetManagers() error = %v", err)
	}

	is, err := d.IsManager("alice")
	if err != nil {
		t.Fatalf("IsManager() error = %v", err)
	}
	if !is {
		t.Error("expected alice to be a manager")
	}

	is, err = d.IsManager("carol")
	if err != nil {
		t.Fatalf("IsManager() error = %v", err)
	}
	if is {
		t.Error("expected carol not to be a manager")
	}

	list, err := d.ListManagers()
	if err != nil {
		t.Fatalf("ListManagers() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListManagers() returned %d entries, want 2", len(list))
	}
}

func TestManagers_SetReplacesPreviousSet(t *testing.T) {
	d := setupTestDB(t)

	if err := d.SetManagers([]string{"alice"}); err != nil {
		t.Fatalf("SetManagers() error = %v", err)
	}
	if err := d.SetManagers([]string{"bob"}); err != nil {
		t.Fatalf("SetManagers() error = %v", err)
	}

	if is, _ := d.IsManager("alice"); is {
		t.Error("expected alice to have been removed by the second SetManagers call")
	}
	if is, _ := d.IsManager("bob"); !is {
		t.Error("expected bob to be a manager")
	}
}

func TestAgents_SetAndList(t *testing.T) {
	d := setupTestDB(t)

	if err := d.SetAgent(RPCAgent{Name: "primary", URL: "http://node:8332", IsPrimary: true}); err != nil {
		t.Fatalf("SetAgent() error = %v", err)
	}
	if err := d.SetAgent(RPCAgent{Name: "attester-1", URL: "http://node2:8332"}); err != nil {
		t.Fatalf("SetAgent() error = %v", err)
	}

	agents, err := d.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("ListAgents() returned %d entries, want 2", len(agents))
	}
	if !agents[0].IsPrimary {
		t.Errorf("expected the primary agent first, got %q", agents[0].Name)
	}
}

func TestAgents_SetUpsertsByName(t *testing.T) {
	d := setupTestDB(t)

	if err := d.SetAgent(RPCAgent{Name: "primary", URL: "http://old:8332"}); err != nil {
		t.Fatalf("SetAgent() error = %v", err)
	}
	if err := d.SetAgent(RPCAgent{Name: "primary", URL: "http://new:8332"}); err != nil {
		t.Fatalf("SetAgent() error = %v", err)
	}

	agents, err := d.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("ListAgents() returned %d entries, want 1 (upsert)", len(agents))
	}
	if agents[0].URL != "http://new:8332" {
		t.Errorf("agent URL = %q, want %q", agents[0].URL, "http://new:8332")
	}
}

func TestAudit_LogAndList(t *testing.T) {
	d := setupTestDB(t)

	if err := d.LogAdminAction("set_managers", "alice", "count=2"); err != nil {
		t.Fatalf("LogAdminAction() error = %v", err)
	}
	if err := d.LogAdminAction("restart_syncing", "alice", "target=Idle"); err != nil {
		t.Fatalf("LogAdminAction() error = %v", err)
	}

	entries, err := d.ListAdminAudit(10)
	if err != nil {
		t.Fatalf("ListAdminAudit() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListAdminAudit() returned %d entries, want 2", len(entries))
	}
	if entries[0].Action != "restart_syncing" {
		t.Errorf("entries[0].Action = %q, want newest-first %q", entries[0].Action, "restart_syncing")
	}
}
