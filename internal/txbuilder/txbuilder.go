// Package txbuilder assembles and signs a simple one-or-two-output legacy
// transaction spending a single sender's UTXOs, the only transaction shape
// either external withdrawals or burn payouts ever need.
package txbuilder

import (
	"context"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/keys"
	"github.com/dogebridge/dogebridge/internal/kms"
	"github.com/dogebridge/dogebridge/internal/models"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/sign"
)

// UtxoSource is the query surface txbuilder selects inputs from.
type UtxoSource interface {
	ListUtxos(addr [21]byte, take int, confirmedOnly bool) ([]models.Utxo, error)
}

// Builder creates and signs transactions on behalf of account holders,
// deriving each sender's address and signing key through a shared
// account.Deriver and kms.Client.
type Builder struct {
	utxos   UtxoSource
	kms     kms.Client
	deriver *account.Deriver
}

// New builds a Builder.
func New(utxos UtxoSource, kmsClient kms.Client, deriver *account.Deriver) *Builder {
	return &Builder{utxos: utxos, kms: kmsClient, deriver: deriver}
}

// EstimateSize returns the estimated serialized size of a legacy
// transaction with nIn compressed-P2PKH inputs and nOut standard outputs.
func EstimateSize(nIn, nOut int) int64 {
	return int64(config.TxOverheadBytes) +
		int64(nIn)*(int64(config.TxInOverheadBytes)+int64(config.CompressedP2PKHScriptSigBytes)) +
		int64(nOut)*int64(config.TxOutBytes)
}

// FeeBySize computes ceil(size * feeRatePerKvB / 1024), floored at
// feeRatePerKvB itself so a transaction under 1 KvB never pays less than
// the configured rate.
func FeeBySize(size, feeRatePerKvB int64) int64 {
	scaled := bareFeeBySize(size, feeRatePerKvB)
	if scaled < feeRatePerKvB {
		return feeRatePerKvB
	}
	return scaled
}

// BurnFeeBySize computes ceil(size * feeRatePerKvB / 1024) with no floor.
// A burn batch's input count is driven by the collected UTXO set rather
// than chosen by the caller, so unlike a withdrawal there is no reason to
// guarantee at least one full KvB's worth of fee on a small batch.
func BurnFeeBySize(size, feeRatePerKvB int64) int64 {
	return bareFeeBySize(size, feeRatePerKvB)
}

func bareFeeBySize(size, feeRatePerKvB int64) int64 {
	return int64(math.Ceil(float64(size) * float64(feeRatePerKvB) / 1024.0))
}

// CreateTx builds an unsigned spend of amount to receiver from
// (ownerPrincipal, fromSubaccount)'s deposit address. If utxos is nil, it
// selects the sender's full merged (including volatile) UTXO set. Returns
// the built transaction and the UTXOs it spends, in txin order, for the
// caller to pass to SignTx.
func (b *Builder) CreateTx(ownerPrincipal []byte, fromSubaccount [32]byte, receiver script.Address, amount, feeRatePerKvB int64, utxos []models.Utxo) (*codec.Transaction, []models.Utxo, error) {
	if amount < config.Dust {
		return nil, nil, fmt.Errorf("%w: amount %d below dust %d", config.ErrBelowDust, amount, config.Dust)
	}

	sender, err := b.deriver.Address(ownerPrincipal, fromSubaccount)
	if err != nil {
		return nil, nil, err
	}

	if utxos == nil {
		utxos, err = b.utxos.ListUtxos(sender.Bytes(), config.MaxSelectionUTXOs, false)
		if err != nil {
			return nil, nil, err
		}
	}

	var total int64
	ins := make([]*codec.TxIn, 0, len(utxos))
	for _, u := range utxos {
		total += u.Value
		ins = append(ins, &codec.TxIn{PrevOutpoint: codec.Outpoint{Hash: u.TxID, Vout: u.Vout}, Sequence: 0xffffffff})
	}

	outs := []*codec.TxOut{
		{Value: amount, ScriptPubKey: receiver.Script()},
		{Value: 0, ScriptPubKey: sender.Script()},
	}

	fee := FeeBySize(EstimateSize(len(ins), len(outs)), feeRatePerKvB)
	if total < amount+fee {
		return nil, nil, fmt.Errorf("%w: have %d, need %d", config.ErrInsufficientFunds, total, amount+fee)
	}

	change := total - amount - fee
	if change < config.Dust {
		outs = outs[:1]
	} else {
		outs[1].Value = change
	}

	tx := &codec.Transaction{Version: config.CurrentTxVersion, TxIn: ins, TxOut: outs, LockTime: 0}
	return tx, utxos, nil
}

// SignTx signs every input of tx under (ownerPrincipal, fromSubaccount)'s
// derivation path, assuming every input spends that single sender's
// scriptPubKey (mixed-sender inputs are rejected implicitly: the produced
// scriptSig would fail to redeem any input that isn't actually owned by
// this path).
func (b *Builder) SignTx(ctx context.Context, tx *codec.Transaction, ownerPrincipal []byte, fromSubaccount [32]byte) error {
	path := keys.AccountPath(ownerPrincipal, fromSubaccount)
	segments := keys.PathSegments(path)

	pubKey, _, err := b.kms.PublicKey(ctx, segments)
	if err != nil {
		return fmt.Errorf("%w: fetch signing pubkey: %v", config.ErrKMS, err)
	}
	senderHash := script.Hash160(pubKey)
	scriptCode := script.NewP2PKHScript(senderHash)

	cache := sign.NewSighashCache(tx)
	done, err := cache.Begin()
	if err != nil {
		return err
	}
	defer done()

	for i := range tx.TxIn {
		sighash, err := sign.ComputeSighash(cache.Tx(), i, scriptCode)
		if err != nil {
			return err
		}
		compact, err := b.kms.Sign(ctx, segments, sighash)
		if err != nil {
			return fmt.Errorf("%w: sign input %d: %v", config.ErrKMS, i, err)
		}
		sigDER := compactToDER(compact)
		scriptSig := sign.BuildP2PKHScriptSig(sigDER, byte(sign.SighashAll), pubKey)
		if err := cache.SetScriptSig(i, scriptSig); err != nil {
			return err
		}
	}
	return nil
}

// compactToDER converts a 64-byte (r||s) compact signature into the DER
// encoding a legacy scriptSig carries.
func compactToDER(sig [64]byte) []byte {
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig[:32])
	s.SetByteSlice(sig[32:])
	return ecdsa.NewSignature(&r, &s).Serialize()
}
