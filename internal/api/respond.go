package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dogebridge/dogebridge/internal/config"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorBody struct {
	Error apiError `json:"error"`
}

// decodeJSON decodes a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorBody{Error: apiError{Code: code, Message: message}})
}

// writeDomainError maps a sentinel error from errors.go to an HTTP status
// and error code and writes it, defaulting to 500/ERROR_INTERNAL for
// anything unrecognized.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, config.ErrUnauthorized):
		writeError(w, http.StatusForbidden, config.ErrorCodeUnauthorized, err.Error())
	case errors.Is(err, config.ErrNotFound):
		writeError(w, http.StatusNotFound, "ERROR_NOT_FOUND", err.Error())
	case errors.Is(err, config.ErrBadAddress):
		writeError(w, http.StatusBadRequest, config.ErrorCodeBadAddress, err.Error())
	case errors.Is(err, config.ErrBelowDust):
		writeError(w, http.StatusBadRequest, config.ErrorCodeBelowDust, err.Error())
	case errors.Is(err, config.ErrInsufficientBalance),
		errors.Is(err, config.ErrInsufficientCollected),
		errors.Is(err, config.ErrInsufficientFunds),
		errors.Is(err, config.ErrInsufficientUTXO):
		writeError(w, http.StatusConflict, config.ErrorCodeInsufficient, err.Error())
	case errors.Is(err, config.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, config.ErrorCodeInvalidConfig, err.Error())
	case errors.Is(err, config.ErrLedger):
		writeError(w, http.StatusBadGateway, config.ErrorCodeLedger, err.Error())
	case errors.Is(err, config.ErrKMS):
		writeError(w, http.StatusBadGateway, config.ErrorCodeKMS, err.Error())
	case errors.Is(err, config.ErrTransport), errors.Is(err, config.ErrRPC):
		writeError(w, http.StatusBadGateway, config.ErrorCodeTransport, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ERROR_INTERNAL", err.Error())
	}
}
