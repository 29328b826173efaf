package api

import (
	"encoding/hex"
	"net/http"

	"github.com/dogebridge/dogebridge/internal/api/middleware"
	"github.com/dogebridge/dogebridge/internal/query"
)

// StateService is the subset of *query.Service the state handler calls.
type StateService interface {
	GetState(privileged bool) (query.State, error)
	GetAddress(ownerPrincipal []byte, subaccount [32]byte) (string, error)
}

// managerChecker mirrors middleware.ManagerChecker, kept local so handlers
// don't need to import middleware just for the type.
type managerChecker interface {
	IsManager(principal string) (bool, error)
}

// getState handles GET /state. A caller is privileged (sees RPC agents and
// the KMS key name) when their principal is a configured manager.
func getState(svc StateService, managers managerChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.Principal(r.Context())
		privileged := false
		if principal != "" {
			if ok, err := managers.IsManager(principal); err == nil {
				privileged = ok
			}
		}

		state, err := svc.GetState(privileged)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// getAddressRequest is the body of POST /address.
type getAddressRequest struct {
	OwnerPrincipalHex string `json:"owner_principal_hex"`
	SubaccountHex     string `json:"subaccount_hex"`
}

// getAddress handles POST /address, deriving the deposit address for
// (owner, subaccount).
func getAddress(svc StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req getAddressRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}

		owner, err := hex.DecodeString(req.OwnerPrincipalHex)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", "owner_principal_hex: "+err.Error())
			return
		}

		var subaccount [32]byte
		if req.SubaccountHex != "" {
			raw, err := hex.DecodeString(req.SubaccountHex)
			if err != nil || len(raw) != 32 {
				writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", "subaccount_hex must be 32 bytes hex-encoded")
				return
			}
			copy(subaccount[:], raw)
		}

		addr, err := svc.GetAddress(owner, subaccount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"address": addr})
	}
}
