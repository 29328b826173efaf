package codec

import (
	"fmt"

	"github.com/dogebridge/dogebridge/internal/config"
)

// EncodeTransaction serializes tx in consensus form.
func EncodeTransaction(tx *Transaction) []byte {
	buf := make([]byte, 0, 256)
	buf = appendU32LE(buf, uint32(tx.Version))
	buf = appendVarInt(buf, uint64(len(tx.TxIn)))
	for _, in := range tx.TxIn {
		buf = append(buf, in.PrevOutpoint.Hash[:]...)
		buf = appendU32LE(buf, in.PrevOutpoint.Vout)
		buf = appendVarBytes(buf, in.ScriptSig)
		buf = appendU32LE(buf, in.Sequence)
	}
	buf = appendVarInt(buf, uint64(len(tx.TxOut)))
	for _, out := range tx.TxOut {
		buf = appendU64LE(buf, uint64(out.Value))
		buf = appendVarBytes(buf, out.ScriptPubKey)
	}
	buf = appendU32LE(buf, tx.LockTime)
	return buf
}

// DecodeTransaction parses a consensus-encoded transaction starting at the
// front of b. It returns the transaction and the number of bytes consumed,
// allowing callers (e.g. block decoding) to continue reading the remainder
// of a larger buffer.
func DecodeTransaction(b []byte) (*Transaction, int, error) {
	r := newReader(b)
	tx, err := decodeTransaction(r)
	if err != nil {
		return nil, 0, err
	}
	return tx, r.pos, nil
}

func decodeTransaction(r *reader) (*Transaction, error) {
	version, err := r.readU32LE()
	if err != nil {
		return nil, err
	}

	inCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	if inCount > maxVectorLen {
		return nil, fmt.Errorf("%w: tx input count %d exceeds bound", config.ErrMalformed, inCount)
	}
	ins := make([]*TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		prevHash, err := r.readHash()
		if err != nil {
			return nil, err
		}
		prevVout, err := r.readU32LE()
		if err != nil {
			return nil, err
		}
		scriptSig, err := r.readVarBytes()
		if err != nil {
			return nil, err
		}
		sequence, err := r.readU32LE()
		if err != nil {
			return nil, err
		}
		ins = append(ins, &TxIn{
			PrevOutpoint: Outpoint{Hash: prevHash, Vout: prevVout},
			ScriptSig:    scriptSig,
			Sequence:     sequence,
		})
	}

	outCount, err := r.readVarInt()
	if err != nil {
		return nil, err
	}
	if outCount > maxVectorLen {
		return nil, fmt.Errorf("%w: tx output count %d exceeds bound", config.ErrMalformed, outCount)
	}
	outs := make([]*TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		value, err := r.readU64LE()
		if err != nil {
			return nil, err
		}
		scriptPubKey, err := r.readVarBytes()
		if err != nil {
			return nil, err
		}
		outs = append(outs, &TxOut{Value: int64(value), ScriptPubKey: scriptPubKey})
	}

	lockTime, err := r.readU32LE()
	if err != nil {
		return nil, err
	}

	return &Transaction{
		Version:  int32(version),
		TxIn:     ins,
		TxOut:    outs,
		LockTime: lockTime,
	}, nil
}

// DecodeTransactionHex decodes a hex-encoded transaction and rejects any
// trailing bytes after the decoded payload, per the top-level entry point
// contract.
func DecodeTransactionHex(hexStr string) (*Transaction, error) {
	b, err := decodeHexStrict(hexStr)
	if err != nil {
		return nil, err
	}
	tx, n, err := DecodeTransaction(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, fmt.Errorf("%w: %d trailing bytes after transaction", config.ErrMalformed, len(b)-n)
	}
	return tx, nil
}
