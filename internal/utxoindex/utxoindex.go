// Package utxoindex maintains the two-layer (volatile pending / confirmed
// stable) per-address UTXO view the chain indexer is built around:
// append_block validates chaining, process_block extracts spends and
// outputs into the volatile layer, and confirm_utxos flushes blocks that
// have aged past the confirmation window into stable storage.
package utxoindex

import (
	"sync"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/models"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/store"
)

// outpointKey identifies a transaction output within the volatile layer.
type outpointKey struct {
	TxID codec.Hash
	Vout uint32
}

// spentPending is an output spent by a processed-but-not-yet-confirmed
// block: still tracked until the spending block itself confirms.
type spentPending struct {
	Utxo    models.Utxo
	SpentAt int64
}

// addrEntry is the per-address volatile bucket: unspent outputs plus
// outputs spent by a block that hasn't confirmed yet.
type addrEntry struct {
	Unspent      map[outpointKey]models.Utxo
	SpentPending map[outpointKey]spentPending
}

func newAddrEntry() *addrEntry {
	return &addrEntry{
		Unspent:      make(map[outpointKey]models.Utxo),
		SpentPending: make(map[outpointKey]spentPending),
	}
}

func (e *addrEntry) empty() bool {
	return len(e.Unspent) == 0 && len(e.SpentPending) == 0
}

// heightHash is a (height, blockhash) pair, used for the tip/processed/
// confirmed/start counters and the processed-blocks deque.
type heightHash struct {
	Height int64
	Hash   codec.Hash
}

// queuedBlock is one entry of the unprocessed-block FIFO.
type queuedBlock struct {
	Height int64
	Hash   codec.Hash
	Block  *codec.Block
}

// persistedCounters is the CI state cell written to stable storage after
// every mutating call, so a restart resumes from the last confirmed and
// processed heights rather than replaying from genesis.
type persistedCounters struct {
	Start, Confirmed, Processed, Tip heightHash
}

// Index is the two-layer UTXO index. All state-mutating methods take the
// single mutex, matching the "single entry point" cooperative concurrency
// model the ingestion scheduler drives it under: at most one call runs at
// a time and none of them suspend mid-mutation.
type Index struct {
	mu               sync.Mutex
	st               *store.Store
	params           config.NetworkParams
	minConfirmations int64

	start, confirmed, processed, tip heightHash

	unprocessed    []queuedBlock
	processedQueue []heightHash

	volAddr map[[21]byte]*addrEntry
	volTx   map[codec.Hash]*models.UnspentTxEntry
}

const stateCellName = "ci_counters"

// New creates an Index backed by st, rehydrating its counters from stable
// storage if present.
func New(st *store.Store, params config.NetworkParams, minConfirmations int64) (*Index, error) {
	idx := &Index{
		st:               st,
		params:           params,
		minConfirmations: minConfirmations,
		volAddr:          make(map[[21]byte]*addrEntry),
		volTx:            make(map[codec.Hash]*models.UnspentTxEntry),
	}

	var c persistedCounters
	found, err := st.GetState(stateCellName, &c)
	if err != nil {
		return nil, err
	}
	if found {
		idx.start, idx.confirmed, idx.processed, idx.tip = c.Start, c.Confirmed, c.Processed, c.Tip
	}
	return idx, nil
}

func (idx *Index) persist() error {
	return idx.st.PutState(stateCellName, persistedCounters{
		Start: idx.start, Confirmed: idx.confirmed, Processed: idx.processed, Tip: idx.tip,
	})
}

// addressFromOutput classifies an output's script and, if it is a
// standard P2PKH or P2SH template, returns the address it pays.
func addressFromOutput(out codec.TxOut, params config.NetworkParams) (script.Address, bool) {
	class, hash := script.Classify(out.ScriptPubKey)
	if hash == nil {
		return script.Address{}, false
	}
	switch class {
	case script.ClassP2PKH:
		return script.NewAddress(params.P2PKHVersion, *hash), true
	case script.ClassP2SH:
		return script.NewAddress(params.P2SHVersion, *hash), true
	}
	return script.Address{}, false
}

// AppendBlock validates height/chaining/hash and pushes block onto the
// unprocessed queue, advancing the tip.
func (idx *Index) AppendBlock(height int64, hash codec.Hash, block *codec.Block) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !(height == 0 || height == idx.tip.Height+1) {
		return config.ErrBadHeight
	}
	if idx.tip.Hash != codec.ZeroHash && idx.tip.Hash != block.Header.PrevBlock {
		return config.ErrReorg
	}
	if recomputed := codec.BlockHash(block.Header); recomputed != hash {
		return config.ErrBadHash
	}

	idx.unprocessed = append(idx.unprocessed, queuedBlock{Height: height, Hash: hash, Block: block})
	idx.tip = heightHash{Height: height, Hash: hash}
	return idx.persist()
}

// ProcessBlock pops the oldest unprocessed block, applies its non-coinbase
// transactions to the volatile layer, and advances processed_*. Returns
// true when it processed a block, false when the queue was empty.
func (idx *Index) ProcessBlock() (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.unprocessed) == 0 {
		return false, nil
	}
	qb := idx.unprocessed[0]
	if idx.processed.Height != 0 && qb.Height != idx.processed.Height+1 {
		return false, config.ErrBadHeight
	}
	idx.unprocessed = idx.unprocessed[1:]

	for i, tx := range qb.Block.Transactions {
		if i == 0 {
			continue // coinbase: no real inputs, outputs are subsidy/fees
		}
		txid := codec.TxHash(tx)

		if err := idx.applySpends(tx, txid, qb.Height); err != nil {
			return false, err
		}
		idx.applyOutputs(tx, txid, qb.Height)
	}

	idx.processedQueue = append(idx.processedQueue, heightHash{Height: qb.Height, Hash: qb.Hash})
	idx.processed = heightHash{Height: qb.Height, Hash: qb.Hash}
	if idx.start.Height == 0 {
		idx.start = heightHash{Height: qb.Height, Hash: qb.Hash}
	}

	if err := idx.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (idx *Index) applySpends(tx *codec.Transaction, txid codec.Hash, heightNow int64) error {
	for _, in := range tx.TxIn {
		prevTxid := in.PrevOutpoint.Hash
		vout := in.PrevOutpoint.Vout

		entry, ok := idx.volTx[prevTxid]
		if !ok {
			stored, found, err := idx.st.GetConfirmedUnspentTx(prevTxid)
			if err != nil {
				return err
			}
			if found {
				entry, ok = stored, true
				idx.volTx[prevTxid] = entry
			}
		}
		if !ok || int(vout) >= len(entry.Outputs) {
			return config.ErrVoutOutOfRange
		}

		out := entry.Outputs[vout]
		if addr, isAddr := addressFromOutput(out, idx.params); isAddr {
			key := addr.Bytes()
			ae := idx.volAddr[key]
			if ae == nil {
				ae = newAddrEntry()
				idx.volAddr[key] = ae
			}
			opKey := outpointKey{TxID: prevTxid, Vout: vout}
			u, existed := ae.Unspent[opKey]
			if existed {
				delete(ae.Unspent, opKey)
			} else {
				u = models.Utxo{Height: entry.Height, TxID: prevTxid, Vout: vout, Value: out.Value}
			}
			ae.SpentPending[opKey] = spentPending{Utxo: u, SpentAt: heightNow}
		}

		entry.Spent[vout] = &models.SpentMarker{Height: heightNow, SpenderTxID: txid}
	}
	return nil
}

func (idx *Index) applyOutputs(tx *codec.Transaction, txid codec.Hash, heightNow int64) {
	entry := &models.UnspentTxEntry{
		Height:  heightNow,
		Outputs: make([]codec.TxOut, len(tx.TxOut)),
		Spent:   make([]*models.SpentMarker, len(tx.TxOut)),
	}
	for vi, o := range tx.TxOut {
		entry.Outputs[vi] = *o
		if addr, isAddr := addressFromOutput(*o, idx.params); isAddr {
			key := addr.Bytes()
			ae := idx.volAddr[key]
			if ae == nil {
				ae = newAddrEntry()
				idx.volAddr[key] = ae
			}
			ae.Unspent[outpointKey{TxID: txid, Vout: uint32(vi)}] = models.Utxo{
				Height: heightNow, TxID: txid, Vout: uint32(vi), Value: o.Value,
			}
		}
	}
	idx.volTx[txid] = entry
}
