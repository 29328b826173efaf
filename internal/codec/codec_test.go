package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dogebridge/dogebridge/internal/config"
)

func sampleTx() *Transaction {
	return &Transaction{
		Version: 1,
		TxIn: []*TxIn{
			{
				PrevOutpoint: Outpoint{Hash: Hash{1, 2, 3}, Vout: 0},
				ScriptSig:    []byte{0x47, 0x30, 0x44},
				Sequence:     0xffffffff,
			},
		},
		TxOut: []*TxOut{
			{Value: 1_000_000, ScriptPubKey: []byte{0x76, 0xa9, 0x14}},
			{Value: 500_000, ScriptPubKey: []byte{0x76, 0xa9, 0x14}},
		},
		LockTime: 0,
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := sampleTx()
	encoded := EncodeTransaction(tx)

	decoded, n, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("DecodeTransaction() error = %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("decoded %d bytes, want %d", n, len(encoded))
	}

	if decoded.Version != tx.Version || decoded.LockTime != tx.LockTime {
		t.Fatalf("version/locktime mismatch: got %+v", decoded)
	}
	if len(decoded.TxIn) != len(tx.TxIn) || len(decoded.TxOut) != len(tx.TxOut) {
		t.Fatalf("input/output count mismatch: got %+v", decoded)
	}
	if !bytes.Equal(decoded.TxIn[0].ScriptSig, tx.TxIn[0].ScriptSig) {
		t.Errorf("scriptSig mismatch")
	}
	if decoded.TxOut[1].Value != tx.TxOut[1].Value {
		t.Errorf("output value mismatch")
	}
}

// R2: txid(tx) == dsha256(encode(tx)); changing any byte of tx changes txid.
func TestTxHashChangesWithAnyByte(t *testing.T) {
	tx := sampleTx()
	original := TxHash(tx)

	mutated := tx.Copy()
	mutated.TxOut[0].Value++
	if TxHash(mutated) == original {
		t.Fatal("txid did not change after mutating output value")
	}

	mutated2 := tx.Copy()
	mutated2.LockTime++
	if TxHash(mutated2) == original {
		t.Fatal("txid did not change after mutating lock_time")
	}
}

func TestDecodeTransactionHex_RejectsTrailingBytes(t *testing.T) {
	tx := sampleTx()
	encoded := EncodeTransaction(tx)
	withTrailing := append(encoded, 0xde, 0xad)

	if _, err := DecodeTransactionHex(EncodeHex(withTrailing)); !errors.Is(err, config.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for trailing bytes, got %v", err)
	}
}

func TestDecodeTransaction_ShortBufferIsMalformed(t *testing.T) {
	_, _, err := DecodeTransaction([]byte{0x01, 0x00, 0x00})
	if !errors.Is(err, config.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{
		Version:    1,
		PrevBlock:  Hash{9, 9, 9},
		MerkleRoot: Hash{1, 1, 1},
		Timestamp:  1700000000,
		Bits:       0x1d00ffff,
		Nonce:      12345,
	}
	encoded := EncodeBlockHeader(h)
	if len(encoded) != BlockHeaderLen {
		t.Fatalf("header length = %d, want %d", len(encoded), BlockHeaderLen)
	}

	r := newReader(encoded)
	decoded, err := decodeBlockHeader(r)
	if err != nil {
		t.Fatalf("decodeBlockHeader() error = %v", err)
	}
	if decoded != h {
		t.Fatalf("header round trip mismatch: got %+v, want %+v", decoded, h)
	}
}

func TestBlockHashDeterministic(t *testing.T) {
	h := BlockHeader{Version: 1, Timestamp: 42}
	a := BlockHash(h)
	b := BlockHash(h)
	if a != b {
		t.Fatal("BlockHash is not deterministic")
	}

	h.Nonce++
	c := BlockHash(h)
	if a == c {
		t.Fatal("BlockHash did not change after mutating nonce")
	}
}

func TestHasAuxPow(t *testing.T) {
	plain := BlockHeader{Version: 1}
	if plain.HasAuxPow() {
		t.Fatal("plain header should not report auxpow")
	}
	merged := BlockHeader{Version: 1 | 0x100}
	if !merged.HasAuxPow() {
		t.Fatal("version with 0x100 bit set should report auxpow")
	}
}

// R1: decode(encode(block)) == block for a well-formed block, with and
// without an auxpow payload.
func TestBlockRoundTrip(t *testing.T) {
	tx := sampleTx()
	txid := TxHash(tx)
	root, err := MerkleRoot([]Hash{txid})
	if err != nil {
		t.Fatalf("MerkleRoot() error = %v", err)
	}

	block := &Block{
		Header: BlockHeader{
			Version:    1,
			PrevBlock:  Hash{1},
			MerkleRoot: root,
			Timestamp:  1700000000,
			Bits:       0x1e0ffff0,
			Nonce:      7,
		},
		Transactions: []*Transaction{tx},
	}

	encoded := EncodeBlock(block)
	decoded, n, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock() error = %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("decoded %d bytes, want %d", n, len(encoded))
	}
	if decoded.Header != block.Header {
		t.Fatalf("header mismatch after round trip")
	}
	if len(decoded.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(decoded.Transactions))
	}
}

func TestBlockRoundTrip_WithAuxPow(t *testing.T) {
	coinbase := sampleTx()
	tx := sampleTx()
	txid := TxHash(tx)
	root, err := MerkleRoot([]Hash{txid})
	if err != nil {
		t.Fatalf("MerkleRoot() error = %v", err)
	}

	block := &Block{
		Header: BlockHeader{
			Version:    1 | versionAuxPowFlag,
			PrevBlock:  Hash{2},
			MerkleRoot: root,
			Timestamp:  1700000001,
			Bits:       0x1e0ffff0,
			Nonce:      11,
		},
		AuxPow: &AuxPow{
			CoinbaseTx:      coinbase,
			ParentBlockHash: Hash{3},
			CoinbaseBranch:  []Hash{{4}, {5}},
			BlockchainBranch: []Hash{{6}},
			ParentBlockHeader: BlockHeader{
				Version: 1,
				Bits:    0x1e0ffff0,
			},
		},
		Transactions: []*Transaction{tx},
	}

	encoded := EncodeBlock(block)
	decoded, n, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("DecodeBlock() error = %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("decoded %d bytes, want %d", n, len(encoded))
	}
	if decoded.AuxPow == nil {
		t.Fatal("expected auxpow to be parsed")
	}
	if decoded.AuxPow.ParentBlockHash != block.AuxPow.ParentBlockHash {
		t.Errorf("parent block hash mismatch")
	}
	if len(decoded.AuxPow.CoinbaseBranch) != 2 {
		t.Errorf("coinbase branch length = %d, want 2", len(decoded.AuxPow.CoinbaseBranch))
	}
}

func TestMerkleRoot_SingleTx(t *testing.T) {
	h := Hash{1, 2, 3}
	root, err := MerkleRoot([]Hash{h})
	if err != nil {
		t.Fatalf("MerkleRoot() error = %v", err)
	}
	if root != h {
		t.Fatalf("single-tx merkle root should equal the txid itself")
	}
}

func TestMerkleRoot_OddCountDuplicatesLast(t *testing.T) {
	a, b, c := Hash{1}, Hash{2}, Hash{3}
	root, err := MerkleRoot([]Hash{a, b, c})
	if err != nil {
		t.Fatalf("MerkleRoot() error = %v", err)
	}

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	left := DoubleSha256(buf[:])
	copy(buf[:32], c[:])
	copy(buf[32:], c[:])
	right := DoubleSha256(buf[:])
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	want := DoubleSha256(buf[:])

	if root != want {
		t.Fatalf("merkle root mismatch for odd tx count")
	}
}

func TestMerkleRoot_EmptyIsError(t *testing.T) {
	if _, err := MerkleRoot(nil); err == nil {
		t.Fatal("expected error for empty tx list")
	}
}

func TestVarIntNonMinimalRejected(t *testing.T) {
	// 0xfd followed by a value < 0xfd is a non-minimal encoding.
	r := newReader([]byte{0xfd, 0x01, 0x00})
	if _, err := r.readVarInt(); !errors.Is(err, config.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for non-minimal varint, got %v", err)
	}
}
