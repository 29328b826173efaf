package utxoindex

import (
	"sort"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/models"
)

// clampTake bounds a requested page size to the configured query range.
func clampTake(take int) int {
	if take < config.MinQueryTake {
		return config.MinQueryTake
	}
	if take > config.MaxQueryTake {
		return config.MaxQueryTake
	}
	return take
}

// mergedView returns addr's confirmed UTXO set, merged with the volatile
// layer unless confirmedOnly is set: volatile spends remove confirmed
// entries, volatile outputs are added, all ordered by the canonical sort.
func (idx *Index) mergedView(addr [21]byte, confirmedOnly bool) ([]models.Utxo, error) {
	confirmed, err := idx.st.ListConfirmedAddrUtxos(addr)
	if err != nil {
		return nil, err
	}
	if confirmedOnly {
		sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].Less(confirmed[j]) })
		return confirmed, nil
	}

	merged := make(map[outpointKey]models.Utxo, len(confirmed))
	for _, u := range confirmed {
		merged[outpointKey{TxID: u.TxID, Vout: u.Vout}] = u
	}
	if ae := idx.volAddr[addr]; ae != nil {
		for k := range ae.SpentPending {
			delete(merged, k)
		}
		for k, u := range ae.Unspent {
			merged[k] = u
		}
	}

	out := make([]models.Utxo, 0, len(merged))
	for _, u := range merged {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// ListUtxos returns up to take (clamped to [MinQueryTake, MaxQueryTake])
// UTXOs for addr, ordered by (height, txid, vout, value). confirmedOnly
// restricts the result to the stable layer, skipping anything still
// pending confirmation.
func (idx *Index) ListUtxos(addr [21]byte, take int, confirmedOnly bool) ([]models.Utxo, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	list, err := idx.mergedView(addr, confirmedOnly)
	if err != nil {
		return nil, err
	}
	take = clampTake(take)
	if len(list) > take {
		list = list[:take]
	}
	return list, nil
}

// GetBalance sums every UTXO value for addr, across the full set (not
// subject to the query-take clamp that bounds ListUtxos).
func (idx *Index) GetBalance(addr [21]byte, confirmedOnly bool) (int64, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	list, err := idx.mergedView(addr, confirmedOnly)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, u := range list {
		total += u.Value
	}
	return total, nil
}

// lookupTx returns txid's unspent-tx row, checking the volatile layer
// before falling back to stable storage. Callers must hold idx.mu.
func (idx *Index) lookupTx(txid codec.Hash) (*models.UnspentTxEntry, bool, error) {
	if e, ok := idx.volTx[txid]; ok {
		return e, true, nil
	}
	return idx.st.GetConfirmedUnspentTx(txid)
}

// GetUtx returns txid's unspent-tx row, or ok=false if it is unknown (never
// indexed, or every output already confirmed-spent and garbage collected).
func (idx *Index) GetUtx(txid codec.Hash) (*models.UnspentTxEntry, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lookupTx(txid)
}

// GetTxBlockHeight returns the height txid was included at.
func (idx *Index) GetTxBlockHeight(txid codec.Hash) (int64, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok, err := idx.lookupTx(txid)
	if err != nil || !ok {
		return 0, ok, err
	}
	return e.Height, true, nil
}

// Snapshot reports the index's current counters and volatile-layer sizes,
// the basis for the indexer's state query.
type Snapshot struct {
	StartHeight, ConfirmedHeight, ProcessedHeight, TipHeight int64
	StartHash, ConfirmedHash, ProcessedHash, TipHash         codec.Hash
	VolatileAddrCount, VolatileTxCount, UnprocessedQueueLen   int
}

// Snapshot returns the index's current state.
func (idx *Index) Snapshot() Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return Snapshot{
		StartHeight:         idx.start.Height,
		StartHash:           idx.start.Hash,
		ConfirmedHeight:     idx.confirmed.Height,
		ConfirmedHash:       idx.confirmed.Hash,
		ProcessedHeight:     idx.processed.Height,
		ProcessedHash:       idx.processed.Hash,
		TipHeight:           idx.tip.Height,
		TipHash:             idx.tip.Hash,
		VolatileAddrCount:   len(idx.volAddr),
		VolatileTxCount:     len(idx.volTx),
		UnprocessedQueueLen: len(idx.unprocessed),
	}
}
