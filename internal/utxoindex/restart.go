package utxoindex

import (
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/models"
)

// ClearForRestartProcessBlock discards the unprocessed-block queue and
// rewinds the tip back to the last successfully processed block, so the
// scheduler can re-fetch and re-append from processed_height+1 after a
// crash mid-process_block.
func (idx *Index) ClearForRestartProcessBlock() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.unprocessed = nil
	idx.tip = idx.processed
	return idx.persist()
}

// ClearForRestartConfirmUtxos discards every volatile-layer entry (the
// unprocessed queue, the in-memory unspent-tx and per-address maps, and
// the processed-blocks queue) and rewinds processed_* and tip_* back to
// confirmed_*, so re-fetching from confirmed_height+1 rebuilds volatile
// state identically. Used both for a crash mid-confirm_utxos and for the
// scheduler's reorg-detected reset, which has the same effect.
func (idx *Index) ClearForRestartConfirmUtxos() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.unprocessed = nil
	idx.processedQueue = nil
	idx.volAddr = make(map[[21]byte]*addrEntry)
	idx.volTx = make(map[codec.Hash]*models.UnspentTxEntry)
	idx.processed = idx.confirmed
	idx.tip = idx.confirmed
	return idx.persist()
}
