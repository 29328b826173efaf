// Package models holds the data shapes shared between the UTXO index,
// its stable storage layer, the minter pipeline, and the query/API
// surfaces built on top of them.
package models

import "github.com/dogebridge/dogebridge/internal/codec"

// Utxo identifies a single unspent transaction output by the sort key the
// rest of the system relies on for deterministic listings and burn-batch
// selection: (height, txid, vout, value).
type Utxo struct {
	Height int64
	TxID   codec.Hash
	Vout   uint32
	Value  int64
}

// Less orders Utxos by (height, txid, vout, value), the canonical sort
// the query contract and burn selection both depend on.
func (u Utxo) Less(o Utxo) bool {
	if u.Height != o.Height {
		return u.Height < o.Height
	}
	if cmp := compareHash(u.TxID, o.TxID); cmp != 0 {
		return cmp < 0
	}
	if u.Vout != o.Vout {
		return u.Vout < o.Vout
	}
	return u.Value < o.Value
}

func compareHash(a, b codec.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SpentMarker records that an output was spent by a transaction at a
// given height, mirroring the indexer state model's `spent_at`.
type SpentMarker struct {
	Height     int64
	SpenderTxID codec.Hash
}

// UnspentTxEntry is the per-transaction row tracked by the unspent-tx map:
// the height it was included at, its raw outputs, and a per-output spend
// marker (nil while unspent).
type UnspentTxEntry struct {
	Height  int64
	Outputs []codec.TxOut
	Spent   []*SpentMarker
}

// AllSpentAtOrBefore reports whether every output of the entry has been
// spent by a block at height <= target.
func (e *UnspentTxEntry) AllSpentAtOrBefore(target int64) bool {
	for _, s := range e.Spent {
		if s == nil || s.Height > target {
			return false
		}
	}
	return true
}

// MintedUtxoRecord is the minter's record of a confirmed deposit UTXO it
// has already credited to a user's ledger balance.
type MintedUtxoRecord struct {
	Utxo        Utxo
	LedgerBlock uint64
	TimestampMs int64
}

// CollectedUtxoRecord is a deposit UTXO owned by the minter's collective
// service key, tracked through its burn-reservation lifecycle.
// BurnBlock and TxBlock are 0 until reserved/included respectively.
type CollectedUtxoRecord struct {
	Utxo     Utxo
	Owner    string
	BurnBlock uint64
	TxBlock   int64
}

// BurnedUtxoRecord groups the UTXOs spent by one burn's transaction.
type BurnedUtxoRecord struct {
	Utxos           []Utxo
	Owners          []string
	Receiver        string
	SpendingTxID    codec.Hash
	ChainHeightSeen int64
}

// BurningIndexEntry tracks an in-flight burn that has debited the ledger
// but not yet produced a spending transaction.
type BurningIndexEntry struct {
	Caller    string
	Receiver  string
	Amount    int64
	FeeRate   int64
	LastError string
}
