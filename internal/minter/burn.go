package minter

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/fxamacker/cbor/v2"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/keys"
	"github.com/dogebridge/dogebridge/internal/ledger"
	"github.com/dogebridge/dogebridge/internal/models"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/sign"
	"github.com/dogebridge/dogebridge/internal/txbuilder"
)

type burnMemo struct {
	Receiver string `cbor:"receiver"`
}

// selectBurnBatch scans collected_utxos for unreserved entries, accumulating
// them in the set's canonical (height, txid, vout, value) order until both
// len(selected) >= max(1, total/BurnBatchDenominator) and their combined
// value covers amount, capped at MaxBurnBatch either way.
func (m *Minter) selectBurnBatch(amount int64) ([]models.CollectedUtxoRecord, error) {
	var count int
	if err := m.st.ForEachCollectedUtxo(func(rec models.CollectedUtxoRecord) (bool, error) {
		count++
		return true, nil
	}); err != nil {
		return nil, err
	}

	batchSize := count / config.BurnBatchDenominator
	if batchSize < 1 {
		batchSize = 1
	}
	if batchSize > config.MaxBurnBatch {
		batchSize = config.MaxBurnBatch
	}

	var selected []models.CollectedUtxoRecord
	var total int64
	err := m.st.ForEachCollectedUtxo(func(rec models.CollectedUtxoRecord) (bool, error) {
		if rec.BurnBlock != 0 {
			return true, nil
		}
		selected = append(selected, rec)
		total += rec.Utxo.Value
		done := len(selected) >= config.MaxBurnBatch || (len(selected) >= batchSize && total >= amount)
		return !done, nil
	})
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no collected utxos available", config.ErrInsufficientCollected)
	}
	return selected, nil
}

// Burn debits amount from caller's ledger balance and pays it out, minus
// the network fee, to receiver in a single chain transaction spending a
// batch of the service's collected deposit UTXOs. The ledger debit is
// durable before any chain send is attempted: if broadcast fails, the
// reservation survives in burning_index for RetryBurn to pick back up,
// never double-spending the already-debited balance.
func (m *Minter) Burn(ctx context.Context, callerPrincipal []byte, receiver script.Address, amount, feeRatePerKvB int64) (uint64, error) {
	if amount < config.MinBurnAmount {
		return 0, fmt.Errorf("%w: amount %d below minimum burn %d", config.ErrBelowDust, amount, config.MinBurnAmount)
	}

	records, err := m.selectBurnBatch(amount)
	if err != nil {
		return 0, err
	}

	utxos := make([]models.Utxo, len(records))
	var total int64
	for i, rec := range records {
		utxos[i] = rec.Utxo
		total += rec.Utxo.Value
	}

	fee := txbuilder.BurnFeeBySize(txbuilder.EstimateSize(len(utxos), 2), feeRatePerKvB)
	payout := amount - fee
	if payout < config.Dust {
		return 0, fmt.Errorf("%w: amount %d too small to cover fee %d", config.ErrBelowDust, amount, fee)
	}
	if total < amount {
		return 0, fmt.Errorf("%w: collected %d, need %d", config.ErrInsufficientCollected, total, amount)
	}

	caller := string(callerPrincipal)
	memo, err := cbor.Marshal(burnMemo{Receiver: receiver.String()})
	if err != nil {
		return 0, fmt.Errorf("encode burn memo: %w", err)
	}

	ledgerBlock, err := m.ledger.BurnFrom(ctx, ledger.Account{Owner: caller}, uint64(amount), memo)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		rec.BurnBlock = ledgerBlock
		if err := m.st.PutCollectedUtxo(rec); err != nil {
			return ledgerBlock, err
		}
	}
	entry := models.BurningIndexEntry{Caller: caller, Receiver: receiver.String(), Amount: amount, FeeRate: feeRatePerKvB}
	if err := m.st.PutBurningIndex(ledgerBlock, entry); err != nil {
		return ledgerBlock, err
	}

	if err := m.sendBurnTx(ctx, ledgerBlock, records, utxos, receiver, payout, feeRatePerKvB); err != nil {
		entry.LastError = err.Error()
		if puErr := m.st.PutBurningIndex(ledgerBlock, entry); puErr != nil {
			return ledgerBlock, fmt.Errorf("%w (also failed to record error: %v)", err, puErr)
		}
		return ledgerBlock, err
	}
	return ledgerBlock, nil
}

// RetryBurn re-attempts the chain send for a burn whose ledger debit and
// UTXO reservation already landed but whose previous attempt failed
// before a spending transaction was broadcast.
func (m *Minter) RetryBurn(ctx context.Context, ledgerBlock uint64) error {
	entry, found, err := m.st.GetBurningIndex(ledgerBlock)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no in-flight burn at ledger block %d", config.ErrNotFound, ledgerBlock)
	}

	var records []models.CollectedUtxoRecord
	if err := m.st.ForEachCollectedUtxo(func(rec models.CollectedUtxoRecord) (bool, error) {
		if rec.BurnBlock == ledgerBlock && rec.TxBlock == 0 {
			records = append(records, rec)
		}
		return true, nil
	}); err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no reserved utxos found for ledger block %d", config.ErrNotFound, ledgerBlock)
	}

	utxos := make([]models.Utxo, len(records))
	var total int64
	for i, rec := range records {
		utxos[i] = rec.Utxo
		total += rec.Utxo.Value
	}
	fee := txbuilder.BurnFeeBySize(txbuilder.EstimateSize(len(utxos), 2), entry.FeeRate)
	payout := entry.Amount - fee
	if payout < config.Dust {
		return fmt.Errorf("%w: amount %d too small to cover fee %d", config.ErrBelowDust, entry.Amount, fee)
	}
	if total < entry.Amount {
		return fmt.Errorf("%w: collected %d, need %d", config.ErrInsufficientCollected, total, entry.Amount)
	}

	receiver, err := script.ParseAddress(entry.Receiver)
	if err != nil {
		return fmt.Errorf("%w: stored receiver %q: %v", config.ErrBadAddress, entry.Receiver, err)
	}

	if err := m.sendBurnTx(ctx, ledgerBlock, records, utxos, receiver, payout, entry.FeeRate); err != nil {
		entry.LastError = err.Error()
		if puErr := m.st.PutBurningIndex(ledgerBlock, *entry); puErr != nil {
			return fmt.Errorf("%w (also failed to record error: %v)", err, puErr)
		}
		return err
	}
	return nil
}

// sendBurnTx builds, signs and broadcasts the spending transaction for a
// burn whose ledger debit and UTXO reservation already landed, then
// records the result and enqueues it for finality tracking.
func (m *Minter) sendBurnTx(ctx context.Context, ledgerBlock uint64, records []models.CollectedUtxoRecord, utxos []models.Utxo, receiver script.Address, payout, feeRatePerKvB int64) error {
	tx, _, err := m.builder.CreateTx(m.servicePrincipal, account.ServiceSubaccount, receiver, payout, feeRatePerKvB, utxos)
	if err != nil {
		return err
	}
	if err := m.signBurnInputs(ctx, tx, records); err != nil {
		return err
	}

	idempotencyKey := fmt.Sprintf("burn-%d", ledgerBlock)
	txidStr, err := m.broadcaster.SendRawTransaction(ctx, idempotencyKey, txHex(tx))
	if err != nil {
		return err
	}
	parsed, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return fmt.Errorf("%w: parse broadcast txid %q: %v", config.ErrMalformed, txidStr, err)
	}
	spendingTxID := codec.Hash(*parsed)

	owners := make([]string, len(records))
	for i, rec := range records {
		owners[i] = rec.Owner
	}
	rec := models.BurnedUtxoRecord{
		Utxos:           utxos,
		Owners:          owners,
		Receiver:        receiver.String(),
		SpendingTxID:    spendingTxID,
		ChainHeightSeen: m.chain.Snapshot().TipHeight,
	}
	if err := m.st.PutBurnedUtxo(ledgerBlock, rec); err != nil {
		return err
	}
	for _, r := range records {
		r.TxBlock = 1 // sentinel: included in an unconfirmed spending tx, awaiting FinalizeBurning
		if err := m.st.PutCollectedUtxo(r); err != nil {
			return err
		}
	}
	if err := m.st.DeleteBurningIndex(ledgerBlock); err != nil {
		return err
	}

	m.pendingFinality = append(m.pendingFinality, pendingFinalityEntry{LedgerBlock: ledgerBlock, StartedMs: nowMs()})
	return m.persistPendingFinality()
}

// signBurnInputs signs each input of tx under its own depositor's
// derivation path: unlike a plain withdrawal, a burn batch's inputs may
// span many different depositor deposit addresses, so every input is
// signed independently rather than under one shared sender key.
func (m *Minter) signBurnInputs(ctx context.Context, tx *codec.Transaction, records []models.CollectedUtxoRecord) error {
	cache := sign.NewSighashCache(tx)
	done, err := cache.Begin()
	if err != nil {
		return err
	}
	defer done()

	// A fresh cache per burn batch, so memoized keys never outlive this call.
	keyCache := NewKeyCache(m.keys.kms, m.keys.service, m.keys.params)
	for i, rec := range records {
		path, pubKey, scriptPubKey, err := keyCache.Get(ctx, rec.Owner)
		if err != nil {
			return err
		}
		sighash, err := sign.ComputeSighash(cache.Tx(), i, scriptPubKey)
		if err != nil {
			return err
		}
		compact, err := m.keys.kms.Sign(ctx, keys.PathSegments(path), sighash)
		if err != nil {
			return fmt.Errorf("%w: sign burn input %d: %v", config.ErrKMS, i, err)
		}
		scriptSig := sign.BuildP2PKHScriptSig(compactToDER(compact), byte(sign.SighashAll), pubKey)
		if err := cache.SetScriptSig(i, scriptSig); err != nil {
			return err
		}
	}
	return nil
}
