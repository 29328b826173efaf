// Package codec implements consensus binary encoding/decoding for blocks,
// headers and transactions on a Bitcoin-family chain with Dogecoin's
// block-version and auxpow layout.
package codec

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Hash is a 32-byte double-SHA256 digest. String() renders the reversed-byte
// hex form used for txid/blockhash display, matching chainhash.Hash.
type Hash = chainhash.Hash

// ZeroHash is the all-zero hash used as the "no previous block" sentinel.
var ZeroHash Hash

// DoubleSha256 computes dsha256(b), the hashing primitive used for both
// txid and block hash.
func DoubleSha256(b []byte) Hash {
	return chainhash.DoubleHashH(b)
}

// Outpoint identifies a previous transaction output being spent.
type Outpoint struct {
	Hash Hash
	Vout uint32
}

// TxIn is one transaction input.
type TxIn struct {
	PrevOutpoint Outpoint
	ScriptSig    []byte
	Sequence     uint32
}

// TxOut is one transaction output.
type TxOut struct {
	Value        int64
	ScriptPubKey []byte
}

// Transaction is the consensus transaction shape: no witness vector, this
// chain predates segwit.
type Transaction struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// Copy returns a deep copy of tx, used by the sighash preimage builder which
// must blank scriptSigs without mutating the caller's transaction.
func (tx *Transaction) Copy() *Transaction {
	out := &Transaction{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		TxIn:     make([]*TxIn, len(tx.TxIn)),
		TxOut:    make([]*TxOut, len(tx.TxOut)),
	}
	for i, in := range tx.TxIn {
		script := make([]byte, len(in.ScriptSig))
		copy(script, in.ScriptSig)
		out.TxIn[i] = &TxIn{
			PrevOutpoint: in.PrevOutpoint,
			ScriptSig:    script,
			Sequence:     in.Sequence,
		}
	}
	for i, o := range tx.TxOut {
		script := make([]byte, len(o.ScriptPubKey))
		copy(script, o.ScriptPubKey)
		out.TxOut[i] = &TxOut{Value: o.Value, ScriptPubKey: script}
	}
	return out
}

// TxHash returns the txid: dsha256 of the consensus encoding.
func TxHash(tx *Transaction) Hash {
	return DoubleSha256(EncodeTransaction(tx))
}
