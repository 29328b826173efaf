// Package minter mints ledger tokens for confirmed deposit UTXOs and, on
// the way back out, burns tokens and pays out a batch of the service's
// collected UTXOs in a single chain transaction.
package minter

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/ledger"
	"github.com/dogebridge/dogebridge/internal/models"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/store"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

const pendingFinalityStateName = "mi_pending_finality"

// ChainIndex is the subset of the chain indexer's public query surface
// the minter depends on; the two services share no memory, only this
// surface, per the single-threaded-per-service concurrency model.
type ChainIndex interface {
	ListUtxos(addr [21]byte, take int, confirmedOnly bool) ([]models.Utxo, error)
	GetTxBlockHeight(txid codec.Hash) (int64, bool, error)
	Snapshot() utxoindex.Snapshot
}

// Broadcaster submits a signed transaction to the network.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, idempotencyKey, txHex string) (string, error)
}

// TxBuilder is the subset of txbuilder.Builder the minter depends on.
type TxBuilder interface {
	CreateTx(ownerPrincipal []byte, fromSubaccount [32]byte, receiver script.Address, amount, feeRatePerKvB int64, utxos []models.Utxo) (*codec.Transaction, []models.Utxo, error)
	SignTx(ctx context.Context, tx *codec.Transaction, ownerPrincipal []byte, fromSubaccount [32]byte) error
}

// pendingFinalityEntry is one in-flight burn awaiting confirmation,
// oldest-first.
type pendingFinalityEntry struct {
	LedgerBlock uint64
	StartedMs   int64
}

// Minter implements the Mint / Burn / Finalize / collect-and-clear
// pipeline described for the minter service.
type Minter struct {
	st          *store.Store
	chain       ChainIndex
	ledger      ledger.Ledger
	builder     TxBuilder
	broadcaster Broadcaster
	deriver     *account.Deriver
	keys        *KeyCache
	params      config.NetworkParams

	servicePrincipal []byte // the minter's own identity; deposit/change addresses derive under it
	pendingFinality  []pendingFinalityEntry
}

// New builds a Minter, rehydrating the pending-finality queue from
// stable storage.
func New(st *store.Store, chain ChainIndex, ldg ledger.Ledger, builder TxBuilder, broadcaster Broadcaster, deriver *account.Deriver, keys *KeyCache, params config.NetworkParams, servicePrincipal []byte) (*Minter, error) {
	m := &Minter{
		st:               st,
		chain:            chain,
		ledger:           ldg,
		builder:          builder,
		broadcaster:      broadcaster,
		deriver:          deriver,
		keys:             keys,
		params:           params,
		servicePrincipal: servicePrincipal,
	}
	if _, err := st.GetState(pendingFinalityStateName, &m.pendingFinality); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minter) persistPendingFinality() error {
	return m.st.PutState(pendingFinalityStateName, m.pendingFinality)
}

// DepositAddress returns caller's distinct deposit address, owned
// collectively under the service's own signing key.
func (m *Minter) DepositAddress(callerPrincipal []byte) (script.Address, error) {
	return m.deriver.Address(m.servicePrincipal, account.DepositSubaccount(callerPrincipal))
}

// ServiceChangeAddress returns the service's own collected/change
// address (the zero subaccount under the service's identity).
func (m *Minter) ServiceChangeAddress() (script.Address, error) {
	return m.deriver.Address(m.servicePrincipal, account.ServiceSubaccount)
}

type mintMemo struct {
	TxID codec.Hash `cbor:"txid"`
	Vout uint32     `cbor:"vout"`
}

// Mint credits caller's ledger balance for every confirmed deposit UTXO
// not yet minted, returning the subtotal actually credited. A partial
// failure mid-batch returns that subtotal alongside the wrapped error, so
// the caller can see what landed before the failure.
func (m *Minter) Mint(ctx context.Context, callerPrincipal []byte) (int64, error) {
	deposit, err := m.DepositAddress(callerPrincipal)
	if err != nil {
		return 0, err
	}

	utxos, err := m.chain.ListUtxos(deposit.Bytes(), config.MaxSelectionUTXOs, true)
	if err != nil {
		return 0, err
	}

	owner := string(callerPrincipal)
	var minted int64
	for _, u := range utxos {
		already, err := m.st.HasMintedUtxo(owner, u)
		if err != nil {
			return minted, err
		}
		if already {
			continue
		}

		memo, err := cbor.Marshal(mintMemo{TxID: u.TxID, Vout: u.Vout})
		if err != nil {
			return minted, fmt.Errorf("encode mint memo: %w", err)
		}

		acct := ledger.Account{Owner: owner}
		block, err := m.ledger.Mint(ctx, acct, uint64(u.Value), memo)
		if err != nil {
			return minted, fmt.Errorf("%w: minted %d before failure: %s", config.ErrLedger, minted, err)
		}

		rec := models.MintedUtxoRecord{Utxo: u, LedgerBlock: block, TimestampMs: time.Now().UnixMilli()}
		if err := m.st.PutMintedUtxo(owner, rec); err != nil {
			return minted, err
		}
		if err := m.st.PutCollectedUtxo(models.CollectedUtxoRecord{Utxo: u, Owner: owner, BurnBlock: 0, TxBlock: 0}); err != nil {
			return minted, err
		}
		minted += u.Value
	}
	return minted, nil
}

// txHex encodes tx for sendrawtransaction.
func txHex(tx *codec.Transaction) string {
	return hex.EncodeToString(codec.EncodeTransaction(tx))
}
