package api

import (
	"net/http"
	"strconv"

	"github.com/dogebridge/dogebridge/internal/api/middleware"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/db"
	"github.com/dogebridge/dogebridge/internal/scheduler"
)

// AdminStore is the subset of *db.DB the admin handlers call.
type AdminStore interface {
	SetManagers(principals []string) error
	ListManagers() ([]string, error)
	SetAgent(agent db.RPCAgent) error
	LogAdminAction(action, caller, detail string) error
}

// RestartDriver is the subset of *scheduler.Scheduler the restart_syncing
// endpoint drives.
type RestartDriver interface {
	AdminRestart(target scheduler.Status) error
}

type setManagersRequest struct {
	Principals []string `json:"principals"`
}

// setManagers handles POST /admin/managers.
func setManagers(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setManagersRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}

		if err := store.SetManagers(req.Principals); err != nil {
			writeDomainError(w, err)
			return
		}

		caller := middleware.Principal(r.Context())
		if err := store.LogAdminAction("set_managers", caller, strconv.Itoa(len(req.Principals))); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type setAgentRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Auth      string `json:"auth"`
	IsPrimary bool   `json:"is_primary"`
}

// setAgent handles POST /admin/agent: stores or replaces the RPC agent row
// named in the request. It signs no proxy token and starts no token refresh.
func setAgent(store AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setAgentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}
		if req.Name == "" || req.URL == "" {
			writeError(w, http.StatusBadRequest, config.ErrorCodeInvalidConfig, "name and url are required")
			return
		}

		agent := db.RPCAgent{Name: req.Name, URL: req.URL, Auth: req.Auth, IsPrimary: req.IsPrimary}
		if err := store.SetAgent(agent); err != nil {
			writeDomainError(w, err)
			return
		}

		caller := middleware.Principal(r.Context())
		if err := store.LogAdminAction("set_agent", caller, req.Name); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type restartSyncingRequest struct {
	Target string `json:"target"`
}

var restartTargets = map[string]scheduler.Status{
	"fetching":       scheduler.StatusFetching,
	"idle":           scheduler.StatusIdle,
	"process_failed": scheduler.StatusProcessFailed,
	"confirm_failed": scheduler.StatusConfirmFailed,
}

// restartSyncing handles POST /admin/restart, driving the scheduler out of
// a halted state. An empty target defaults to "fetching".
func restartSyncing(store AdminStore, sched RestartDriver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req restartSyncingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}

		targetName := req.Target
		if targetName == "" {
			targetName = "fetching"
		}
		target, ok := restartTargets[targetName]
		if !ok {
			writeError(w, http.StatusBadRequest, config.ErrorCodeInvalidConfig, "unknown restart target: "+targetName)
			return
		}

		if err := sched.AdminRestart(target); err != nil {
			writeDomainError(w, err)
			return
		}

		caller := middleware.Principal(r.Context())
		if err := store.LogAdminAction("restart_syncing", caller, targetName); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
