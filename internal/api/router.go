// Package api serves the query and admin surfaces over HTTP: indexer
// state, deposit address derivation, mint/burn, and the manager-gated
// admin endpoints (set_managers, set_agent, restart_syncing).
package api

import (
	"net/http"

	"github.com/dogebridge/dogebridge/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// NewRouter builds the full chi router. store backs both the manager gate
// and the admin handlers; sched drives restart_syncing.
func NewRouter(stateSvc StateService, minterSvc MinterService, store AdminStore, sched RestartDriver, managers middleware.ManagerChecker) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogging)
	r.Use(middleware.WithPrincipal)

	r.Get("/state", getState(stateSvc, managers))
	r.Post("/address", getAddress(stateSvc))
	r.Post("/mint", mint(minterSvc))
	r.Post("/burn", burn(minterSvc))
	r.Post("/burn/retry", retryBurn(minterSvc))

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireManager(managers, writeUnauthorized))
		r.Post("/managers", setManagers(store))
		r.Post("/agent", setAgent(store))
		r.Post("/restart", restartSyncing(store, sched))
	})

	return r
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "ERROR_UNAUTHORIZED", "caller is not a manager")
}
