package txbuilder

import (
	"context"
	"errors"
	"testing"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/kms"
	"github.com/dogebridge/dogebridge/internal/models"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/sign"
)

func testSeed(b byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	return seed
}

func testDeriver(t *testing.T) (*account.Deriver, kms.Client) {
	t.Helper()
	local, err := kms.NewLocalKMS(testSeed(0x42))
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}
	deriver, err := account.NewDeriver(context.Background(), local, config.Mainnet)
	if err != nil {
		t.Fatalf("NewDeriver() error = %v", err)
	}
	return deriver, local
}

// fakeUtxoSource returns a fixed list regardless of address, enough for
// exercising selection math in isolation.
type fakeUtxoSource struct {
	list []models.Utxo
}

func (f *fakeUtxoSource) ListUtxos(addr [21]byte, take int, confirmedOnly bool) ([]models.Utxo, error) {
	return f.list, nil
}

func TestCreateTx_BelowDustRejected(t *testing.T) {
	deriver, kmsClient := testDeriver(t)
	b := New(&fakeUtxoSource{}, kmsClient, deriver)

	receiver := script.NewAddress(config.Mainnet.P2PKHVersion, [20]byte{1})
	_, _, err := b.CreateTx([]byte("owner"), [32]byte{}, receiver, config.Dust-1, 1000, nil)
	if !errors.Is(err, config.ErrBelowDust) {
		t.Fatalf("expected ErrBelowDust, got %v", err)
	}
}

func TestCreateTx_InsufficientFundsRejected(t *testing.T) {
	deriver, kmsClient := testDeriver(t)
	utxos := []models.Utxo{{Height: 1, TxID: codec.Hash{1}, Vout: 0, Value: 2 * config.Dust}}
	b := New(&fakeUtxoSource{list: utxos}, kmsClient, deriver)

	receiver := script.NewAddress(config.Mainnet.P2PKHVersion, [20]byte{1})
	_, _, err := b.CreateTx([]byte("owner"), [32]byte{}, receiver, 100*config.Dust, 1000, nil)
	if !errors.Is(err, config.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestCreateTx_DropsChangeBelowDust(t *testing.T) {
	deriver, kmsClient := testDeriver(t)
	amount := 10 * config.Dust
	// Leave just under one dust unit of room after amount + fee.
	utxos := []models.Utxo{{Height: 1, TxID: codec.Hash{1}, Vout: 0, Value: amount + 1000}}
	b := New(&fakeUtxoSource{list: utxos}, kmsClient, deriver)

	receiver := script.NewAddress(config.Mainnet.P2PKHVersion, [20]byte{1})
	tx, _, err := b.CreateTx([]byte("owner"), [32]byte{}, receiver, amount, 1000, nil)
	if err != nil {
		t.Fatalf("CreateTx() error = %v", err)
	}
	if len(tx.TxOut) != 1 {
		t.Fatalf("TxOut count = %d, want 1 (change dropped)", len(tx.TxOut))
	}
}

func TestCreateTx_KeepsChangeAboveDust(t *testing.T) {
	deriver, kmsClient := testDeriver(t)
	amount := 10 * config.Dust
	utxos := []models.Utxo{{Height: 1, TxID: codec.Hash{1}, Vout: 0, Value: amount + 50*config.Dust}}
	b := New(&fakeUtxoSource{list: utxos}, kmsClient, deriver)

	receiver := script.NewAddress(config.Mainnet.P2PKHVersion, [20]byte{1})
	tx, utxos2, err := b.CreateTx([]byte("owner"), [32]byte{}, receiver, amount, 1000, nil)
	if err != nil {
		t.Fatalf("CreateTx() error = %v", err)
	}
	if len(tx.TxOut) != 2 {
		t.Fatalf("TxOut count = %d, want 2 (change kept)", len(tx.TxOut))
	}
	if tx.TxOut[0].Value != amount {
		t.Fatalf("TxOut[0].Value = %d, want %d", tx.TxOut[0].Value, amount)
	}
	if len(utxos2) != 1 {
		t.Fatalf("returned utxo count = %d, want 1", len(utxos2))
	}
}

func TestSignTx_ProducesVerifiableScriptSig(t *testing.T) {
	deriver, kmsClient := testDeriver(t)
	owner := []byte("owner-1")
	sub := [32]byte{9}

	sender, err := deriver.Address(owner, sub)
	if err != nil {
		t.Fatalf("Address() error = %v", err)
	}
	utxos := []models.Utxo{{Height: 1, TxID: codec.Hash{3}, Vout: 0, Value: 50 * config.Dust}}
	b := New(&fakeUtxoSource{list: utxos}, kmsClient, deriver)

	receiver := script.NewAddress(config.Mainnet.P2PKHVersion, [20]byte{7})
	tx, _, err := b.CreateTx(owner, sub, receiver, 10*config.Dust, 1000, utxos)
	if err != nil {
		t.Fatalf("CreateTx() error = %v", err)
	}

	if err := b.SignTx(context.Background(), tx, owner, sub); err != nil {
		t.Fatalf("SignTx() error = %v", err)
	}
	if len(tx.TxIn[0].ScriptSig) == 0 {
		t.Fatal("SignTx left scriptSig empty")
	}

	scriptCode := script.NewP2PKHScript(sender.Hash)
	sighash, err := sign.ComputeSighash(tx, 0, scriptCode)
	if err != nil {
		t.Fatalf("ComputeSighash() error = %v", err)
	}
	_ = sighash // scriptSig decoding/verification against this digest is covered at the sign package level
}
