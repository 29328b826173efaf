package kms

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/dogebridge/dogebridge/internal/keys"
)

// verifyCompact checks a 64-byte (r||s) signature against pub and msg,
// mirroring how a caller of kms.Client.Sign must interpret the result.
func verifyCompact(pub *btcec.PublicKey, msg [32]byte, sig [64]byte) (bool, error) {
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig[:32])
	s.SetByteSlice(sig[32:])
	return ecdsa.NewSignature(&r, &s).Verify(msg[:], pub), nil
}

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestLocalKMS_PublicKeyDeterministic(t *testing.T) {
	kms, err := NewLocalKMS(testSeed())
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}

	path := [][]byte{{1}, []byte("owner-1")}
	pub1, cc1, err := kms.PublicKey(context.Background(), path)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	pub2, cc2, err := kms.PublicKey(context.Background(), path)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if string(pub1) != string(pub2) || string(cc1) != string(cc2) {
		t.Fatal("PublicKey is not deterministic for the same path")
	}
}

func TestLocalKMS_DifferentPathsDifferentKeys(t *testing.T) {
	kms, err := NewLocalKMS(testSeed())
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}

	pubA, _, err := kms.PublicKey(context.Background(), [][]byte{[]byte("owner-a")})
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	pubB, _, err := kms.PublicKey(context.Background(), [][]byte{[]byte("owner-b")})
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	if string(pubA) == string(pubB) {
		t.Fatal("distinct paths derived the same public key")
	}
}

func TestLocalKMS_SignMatchesPublicKey(t *testing.T) {
	kms, err := NewLocalKMS(testSeed())
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}

	path := [][]byte{[]byte("owner-1")}
	pubBytes, _, err := kms.PublicKey(context.Background(), path)
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		t.Fatalf("parse pubkey: %v", err)
	}

	var msg [32]byte
	copy(msg[:], []byte("some 32 byte message to sign!!!"))

	sig, err := kms.Sign(context.Background(), path, msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ok, err := verifyCompact(pub, msg, sig)
	if err != nil {
		t.Fatalf("verifyCompact() error = %v", err)
	}
	if !ok {
		t.Fatal("signature produced by LocalKMS.Sign did not verify against its own PublicKey")
	}
}

func TestLocalKMS_SignProxyTokenUsesFixedPath(t *testing.T) {
	kms, err := NewLocalKMS(testSeed())
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}

	var msg [32]byte
	copy(msg[:], []byte("proxy token payload digest!!!!!"))

	sigViaHelper, err := kms.SignProxyToken(context.Background(), msg)
	if err != nil {
		t.Fatalf("SignProxyToken() error = %v", err)
	}
	sigViaPath, err := kms.Sign(context.Background(), ProxyTokenPath, msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if sigViaHelper != sigViaPath {
		t.Fatal("SignProxyToken did not sign under ProxyTokenPath")
	}
}

// Sanity check that LocalKMS's private-side derivation agrees with the
// public-only derivation walk in internal/keys for the same path shape,
// confirming both sides of the bridge compute the same child key.
func TestLocalKMS_AgreesWithPublicDerivation(t *testing.T) {
	kms, err := NewLocalKMS(testSeed())
	if err != nil {
		t.Fatalf("NewLocalKMS() error = %v", err)
	}

	rootPub, rootCC, err := kms.PublicKey(context.Background(), nil)
	if err != nil {
		t.Fatalf("PublicKey(nil) error = %v", err)
	}

	owner := []byte("owner-xyz")
	sub := [32]byte{9, 9, 9}
	path := keys.AccountPath(owner, sub)

	derivedPub, _, err := keys.DerivePublic(rootPub, rootCC, path)
	if err != nil {
		t.Fatalf("keys.DerivePublic() error = %v", err)
	}

	segments := make([][]byte, len(path))
	for i, idx := range path {
		segments[i] = []byte{byte(idx >> 24), byte(idx >> 16), byte(idx >> 8), byte(idx)}
	}
	kmsPub, _, err := kms.PublicKey(context.Background(), segments)
	if err != nil {
		t.Fatalf("kms.PublicKey(segments) error = %v", err)
	}

	if string(derivedPub.SerializeCompressed()) != string(kmsPub) {
		t.Fatal("public-side derivation and KMS private-side derivation disagree")
	}
}
