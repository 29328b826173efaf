// Package sign computes legacy per-input sighash preimages and produces the
// low-S DER ECDSA signatures that fill a P2PKH scriptSig.
package sign

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
)

// SighashAll is the only sighash flag this indexer's tx builder ever signs
// with.
const SighashAll uint32 = 1

// ComputeSighash builds the legacy (pre-segwit) SIGHASH_ALL preimage for
// input i, signing against scriptCode (the output script being redeemed),
// and returns its dsha256 digest.
func ComputeSighash(tx *codec.Transaction, i int, scriptCode []byte) (codec.Hash, error) {
	if i < 0 || i >= len(tx.TxIn) {
		return codec.Hash{}, fmt.Errorf("%w: sighash input index %d out of range", config.ErrMalformed, i)
	}

	stripped := tx.Copy()
	for _, in := range stripped.TxIn {
		in.ScriptSig = nil
	}
	stripped.TxIn[i].ScriptSig = scriptCode

	buf := codec.EncodeTransaction(stripped)
	var flag [4]byte
	binary.LittleEndian.PutUint32(flag[:], SighashAll)
	buf = append(buf, flag[:]...)

	return codec.DoubleSha256(buf), nil
}

// SighashCache memoizes the transaction under construction across the
// signing of each of its inputs and forbids a second concurrent signer
// from mutating it mid-flight.
type SighashCache struct {
	mu  sync.Mutex
	tx  *codec.Transaction
	busy bool
}

// NewSighashCache wraps tx for sequential per-input signing.
func NewSighashCache(tx *codec.Transaction) *SighashCache {
	return &SighashCache{tx: tx}
}

// Begin marks the cache busy for the duration of a signing pass, returning
// ErrCacheBusy if another signer is already in flight.
func (c *SighashCache) Begin() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, config.ErrCacheBusy
	}
	c.busy = true
	return func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}, nil
}

// Tx returns the transaction under construction.
func (c *SighashCache) Tx() *codec.Transaction {
	return c.tx
}

// SetScriptSig installs the final scriptSig for input i once it has been
// signed.
func (c *SighashCache) SetScriptSig(i int, scriptSig []byte) error {
	if i < 0 || i >= len(c.tx.TxIn) {
		return fmt.Errorf("%w: scriptSig input index %d out of range", config.ErrMalformed, i)
	}
	c.tx.TxIn[i].ScriptSig = scriptSig
	return nil
}
