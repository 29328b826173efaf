package utxoindex

import (
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/models"
)

// ConfirmUtxos advances the confirmed height to the oldest processed block
// still within the confirmation window, flushing volatile entries that
// have aged past it into stable storage. Returns whether another
// unprocessed block remains, so the caller can keep draining both queues
// in a single scheduler tick.
func (idx *Index) ConfirmUtxos() (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	target := idx.processed.Height - idx.minConfirmations
	if target < idx.start.Height || target <= idx.confirmed.Height {
		return len(idx.unprocessed) > 0, nil
	}

	targetHash, found := idx.findAndTrimProcessedQueue(target)
	if !found {
		return false, config.ErrMissingProcessedBlock
	}

	if err := idx.flushUnspentTx(target); err != nil {
		return false, err
	}
	if err := idx.flushAddrs(target); err != nil {
		return false, err
	}

	idx.confirmed = heightHash{Height: target, Hash: targetHash}
	if err := idx.persist(); err != nil {
		return false, err
	}
	return len(idx.unprocessed) > 0, nil
}

// findAndTrimProcessedQueue drops every queue entry older than target and
// reports the hash of the entry at exactly target, if present.
func (idx *Index) findAndTrimProcessedQueue(target int64) (codec.Hash, bool) {
	var targetHash codec.Hash
	found := false
	kept := idx.processedQueue[:0]
	for _, hh := range idx.processedQueue {
		if hh.Height < target {
			continue
		}
		if hh.Height == target {
			targetHash = hh.Hash
			found = true
		}
		kept = append(kept, hh)
	}
	idx.processedQueue = kept
	return targetHash, found
}

// flushUnspentTx moves every volatile unspent-tx entry into stable storage:
// deleted if every output is spent at or before target, otherwise written
// with only the spend markers at or before target kept.
func (idx *Index) flushUnspentTx(target int64) error {
	for txid, entry := range idx.volTx {
		if entry.AllSpentAtOrBefore(target) {
			if err := idx.st.DeleteConfirmedUnspentTx(txid); err != nil {
				return err
			}
			delete(idx.volTx, txid)
			continue
		}

		confirmedSpent := make([]*models.SpentMarker, len(entry.Spent))
		for i, s := range entry.Spent {
			if s != nil && s.Height <= target {
				confirmedSpent[i] = s
			}
		}
		snapshot := models.UnspentTxEntry{Height: entry.Height, Outputs: entry.Outputs, Spent: confirmedSpent}
		if err := idx.st.PutConfirmedUnspentTx(txid, snapshot); err != nil {
			return err
		}
		delete(idx.volTx, txid)
	}
	return nil
}

// flushAddrs moves every address's outputs created or spent at or before
// target into stable storage, dropping the volatile bucket once it is empty.
func (idx *Index) flushAddrs(target int64) error {
	for addr, ae := range idx.volAddr {
		var toDelete, toInsert []models.Utxo
		remainingUnspent := make(map[outpointKey]models.Utxo)
		for k, u := range ae.Unspent {
			if u.Height <= target {
				toInsert = append(toInsert, u)
			} else {
				remainingUnspent[k] = u
			}
		}
		remainingSpent := make(map[outpointKey]spentPending)
		for k, sp := range ae.SpentPending {
			if sp.SpentAt <= target {
				toDelete = append(toDelete, sp.Utxo)
			} else {
				remainingSpent[k] = sp
			}
		}

		for _, u := range toDelete {
			if err := idx.st.DeleteConfirmedAddrUtxo(addr, u); err != nil {
				return err
			}
		}
		for _, u := range toInsert {
			if err := idx.st.PutConfirmedAddrUtxo(addr, u); err != nil {
				return err
			}
		}

		ae.Unspent, ae.SpentPending = remainingUnspent, remainingSpent
		if ae.empty() {
			delete(idx.volAddr, addr)
		}
	}
	return nil
}
