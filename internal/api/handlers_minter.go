package api

import (
	"context"
	"net/http"

	"github.com/dogebridge/dogebridge/internal/api/middleware"
	"github.com/dogebridge/dogebridge/internal/script"
)

// MinterService is the subset of *minter.Minter the mint/burn handlers
// call.
type MinterService interface {
	Mint(ctx context.Context, callerPrincipal []byte) (int64, error)
	Burn(ctx context.Context, callerPrincipal []byte, receiver script.Address, amount, feeRatePerKvB int64) (uint64, error)
	RetryBurn(ctx context.Context, ledgerBlock uint64) error
}

// mint handles POST /mint: scans the caller's deposit address for newly
// confirmed UTXOs and credits the ledger.
func mint(svc MinterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.Principal(r.Context())
		if principal == "" {
			writeError(w, http.StatusUnauthorized, "ERROR_UNAUTHORIZED", "caller principal required")
			return
		}

		credited, err := svc.Mint(r.Context(), []byte(principal))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"credited": credited})
	}
}

type burnRequest struct {
	Receiver      string `json:"receiver"`
	Amount        int64  `json:"amount"`
	FeeRatePerKvB int64  `json:"fee_rate_per_kvb"`
}

// burn handles POST /burn: debits the caller's ledger balance and sends the
// payout to a chain address.
func burn(svc MinterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.Principal(r.Context())
		if principal == "" {
			writeError(w, http.StatusUnauthorized, "ERROR_UNAUTHORIZED", "caller principal required")
			return
		}

		var req burnRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}

		receiver, err := script.ParseAddress(req.Receiver)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_BAD_ADDRESS", err.Error())
			return
		}

		block, err := svc.Burn(r.Context(), []byte(principal), receiver, req.Amount, req.FeeRatePerKvB)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"ledger_block": block})
	}
}

// retryBurn handles POST /burn/retry, re-sending a burn whose chain send
// previously failed.
func retryBurn(svc MinterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LedgerBlock uint64 `json:"ledger_block"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ERROR_MALFORMED", err.Error())
			return
		}

		if err := svc.RetryBurn(r.Context(), req.LedgerBlock); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
