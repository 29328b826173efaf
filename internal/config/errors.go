package config

import (
	"errors"
	"time"
)

// Sentinel errors shared across packages, named after the error taxonomy.
var (
	// Ingestion / RPC.
	ErrTransport             = errors.New("rpc transport error")
	ErrRPC                   = errors.New("rpc returned an error")
	ErrReorg                 = errors.New("chain reorganized")
	ErrMalformed             = errors.New("malformed consensus data")
	ErrBadHeight             = errors.New("unexpected block height")
	ErrBadHash               = errors.New("block hash mismatch")
	ErrVoutOutOfRange        = errors.New("prevout vout out of range")
	ErrMissingProcessedBlock = errors.New("processed block missing from queue")

	// Address / script / codec.
	ErrBadAddress = errors.New("invalid address")

	// Tx builder / minter.
	ErrBelowDust           = errors.New("amount below dust threshold")
	ErrInsufficientFunds   = errors.New("insufficient utxo value to cover amount and fee")
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
	ErrInsufficientUTXO    = errors.New("insufficient utxo value to cover fee")
	ErrInsufficientCollected = errors.New("insufficient collected utxos to cover burn amount")

	// KMS / ledger / auth.
	ErrKMS           = errors.New("kms operation failed")
	ErrLedger        = errors.New("ledger operation failed")
	ErrUnauthorized  = errors.New("caller is not authorized")
	ErrHardenedFromPublic = errors.New("cannot derive hardened child from a public key")

	// Generic config/validation.
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNotFound      = errors.New("not found")

	// Signing.
	ErrCacheBusy = errors.New("sighash cache has a signer already in flight")
)

// transientError marks an error as safe to retry, optionally carrying a
// server-suggested retry-after duration (e.g. from an HTTP 429/503).
type transientError struct {
	err        error
	retryAfter time.Duration
}

// NewTransientError wraps err so that IsTransient reports true.
func NewTransientError(err error) error {
	return &transientError{err: err}
}

// NewTransientErrorWithRetry wraps err as transient with a suggested retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &transientError{err: err, retryAfter: retryAfter}
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// IsTransient reports whether err (or anything it wraps) was marked
// transient, meaning the caller's scheduler should retry rather than halt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *transientError
	return errors.As(err, &t)
}

// GetRetryAfter returns the suggested retry delay carried by a transient
// error, or zero if err is not transient or carries no hint.
func GetRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}
	var t *transientError
	if errors.As(err, &t) {
		return t.retryAfter
	}
	return 0
}
