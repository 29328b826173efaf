package sign

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/script"
)

func testTx() *codec.Transaction {
	return &codec.Transaction{
		Version: 1,
		TxIn: []*codec.TxIn{
			{PrevOutpoint: codec.Outpoint{Hash: codec.Hash{1}, Vout: 0}, Sequence: 0xffffffff},
		},
		TxOut: []*codec.TxOut{
			{Value: 1_000_000, ScriptPubKey: []byte{0x76, 0xa9}},
		},
	}
}

func TestComputeSighash_BlanksOtherScriptSigs(t *testing.T) {
	tx := testTx()
	tx.TxIn = append(tx.TxIn, &codec.TxIn{
		PrevOutpoint: codec.Outpoint{Hash: codec.Hash{2}, Vout: 1},
		ScriptSig:    []byte{0xde, 0xad},
		Sequence:     0xffffffff,
	})

	scriptCode := []byte{0x76, 0xa9, 0x14}
	h0, err := ComputeSighash(tx, 0, scriptCode)
	if err != nil {
		t.Fatalf("ComputeSighash() error = %v", err)
	}

	// The original tx must be untouched (Copy() inside ComputeSighash).
	if len(tx.TxIn[1].ScriptSig) == 0 {
		t.Fatal("ComputeSighash mutated the caller's transaction")
	}

	h1, err := ComputeSighash(tx, 1, scriptCode)
	if err != nil {
		t.Fatalf("ComputeSighash() error = %v", err)
	}
	if h0 == h1 {
		t.Fatal("sighash for different input indexes should differ")
	}
}

func TestComputeSighash_OutOfRange(t *testing.T) {
	tx := testTx()
	if _, err := ComputeSighash(tx, 5, nil); !errors.Is(err, config.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestSignAndVerify(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey() error = %v", err)
	}

	tx := testTx()
	hash := [20]byte{}
	scriptCode := script.NewP2PKHScript(hash)
	sighash, err := ComputeSighash(tx, 0, scriptCode)
	if err != nil {
		t.Fatalf("ComputeSighash() error = %v", err)
	}

	sigDER := SignWithPrivateKey(priv, sighash)
	ok, err := VerifySignature(priv.PubKey(), sighash, sigDER)
	if err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
	if !ok {
		t.Fatal("signature failed to verify")
	}

	scriptSig := BuildP2PKHScriptSig(sigDER, 0x01, priv.PubKey().SerializeCompressed())
	if len(scriptSig) == 0 {
		t.Fatal("BuildP2PKHScriptSig produced empty scriptSig")
	}
}

func TestSighashCache_ForbidsConcurrentSigners(t *testing.T) {
	cache := NewSighashCache(testTx())

	done, err := cache.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if _, err := cache.Begin(); !errors.Is(err, config.ErrCacheBusy) {
		t.Fatalf("expected ErrCacheBusy on concurrent Begin, got %v", err)
	}

	done()

	if _, err := cache.Begin(); err != nil {
		t.Fatalf("Begin() after release should succeed, got %v", err)
	}
}

func TestSighashCache_SetScriptSig(t *testing.T) {
	cache := NewSighashCache(testTx())
	if err := cache.SetScriptSig(0, []byte{0x01}); err != nil {
		t.Fatalf("SetScriptSig() error = %v", err)
	}
	if cache.Tx().TxIn[0].ScriptSig[0] != 0x01 {
		t.Fatal("scriptSig was not installed")
	}

	if err := cache.SetScriptSig(99, nil); err == nil {
		t.Fatal("expected error for out-of-range input index")
	}
}
