package minter

import (
	"context"

	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/models"
)

// FinalizeBurning checks the oldest in-flight burn's spending transaction
// for inclusion, at most once per FinalityPollInterval. A still-unmined
// transaction is re-enqueued at the back of the queue so every pending
// burn gets a turn rather than one stuck entry blocking the rest. A mined
// transaction is re-enqueued too, to keep watching for reorg, until the
// chain index's confirmed layer has buried its block height; only then is
// the entry dropped for good. hasMore reports whether another entry was
// already due by the time this call returned, so a caller can keep
// draining the queue without waiting out a full poll interval between
// calls.
func (m *Minter) FinalizeBurning(ctx context.Context) (hasMore bool, err error) {
	if len(m.pendingFinality) == 0 {
		return false, nil
	}
	head := m.pendingFinality[0]
	if nowMs()-head.StartedMs < config.FinalityPollInterval.Milliseconds() {
		return false, nil
	}
	m.pendingFinality = m.pendingFinality[1:]

	rec, found, err := m.st.GetBurnedUtxo(head.LedgerBlock)
	if err != nil {
		return false, err
	}
	if !found {
		// Nothing left to track; drop the stale entry.
		return m.entryDueNow(), m.persistPendingFinality()
	}

	height, ok, err := m.chain.GetTxBlockHeight(rec.SpendingTxID)
	if err != nil {
		m.pendingFinality = append(m.pendingFinality, head)
		if puErr := m.persistPendingFinality(); puErr != nil {
			return false, puErr
		}
		return false, err
	}
	if !ok {
		m.pendingFinality = append(m.pendingFinality, head)
		return m.entryDueNow(), m.persistPendingFinality()
	}

	for _, u := range rec.Utxos {
		cur, found, err := m.st.GetCollectedUtxo(u)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		cur.TxBlock = height
		if err := m.st.PutCollectedUtxo(*cur); err != nil {
			return false, err
		}
	}

	rec.ChainHeightSeen = height
	if err := m.st.PutBurnedUtxo(head.LedgerBlock, *rec); err != nil {
		return false, err
	}

	if m.chain.Snapshot().ConfirmedHeight < height {
		// Still shallow enough to be reorged out from under us; keep
		// watching rather than declaring it final.
		m.pendingFinality = append(m.pendingFinality, pendingFinalityEntry{LedgerBlock: head.LedgerBlock, StartedMs: nowMs()})
	}
	return m.entryDueNow(), m.persistPendingFinality()
}

func (m *Minter) entryDueNow() bool {
	return len(m.pendingFinality) > 0 && nowMs()-m.pendingFinality[0].StartedMs >= config.FinalityPollInterval.Milliseconds()
}

// CollectAndClearUtxos scans the service's own change address for newly
// confirmed UTXOs to track, and garbage-collects collected_utxos entries
// whose spending transaction is old enough that the chain index's own
// confirmed layer is the only record anyone still needs.
func (m *Minter) CollectAndClearUtxos(ctx context.Context) error {
	changeAddr, err := m.ServiceChangeAddress()
	if err != nil {
		return err
	}
	utxos, err := m.chain.ListUtxos(changeAddr.Bytes(), config.MaxSelectionUTXOs, true)
	if err != nil {
		return err
	}
	for _, u := range utxos {
		_, found, err := m.st.GetCollectedUtxo(u)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		rec := models.CollectedUtxoRecord{Utxo: u, Owner: string(m.servicePrincipal), BurnBlock: 0, TxBlock: 0}
		if err := m.st.PutCollectedUtxo(rec); err != nil {
			return err
		}
	}

	confirmedHeight := m.chain.Snapshot().ConfirmedHeight
	var expired []models.Utxo
	err = m.st.ForEachCollectedUtxo(func(rec models.CollectedUtxoRecord) (bool, error) {
		if rec.TxBlock > 1 && rec.TxBlock < confirmedHeight-config.CollectedUTXOGCAfterBlocks {
			expired = append(expired, rec.Utxo)
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, u := range expired {
		if err := m.st.DeleteCollectedUtxo(u); err != nil {
			return err
		}
	}
	return nil
}
