package kms

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/dogebridge/dogebridge/internal/config"
)

// LocalKMS is a single-root-key reference signer: it plays the role a
// threshold ECDSA service plays in production, for local development and
// tests. The root extended private key never leaves this type.
type LocalKMS struct {
	master *hdkeychain.ExtendedKey
}

// NewLocalKMS derives a BIP32 master key from seed (arbitrary length,
// typically 32+ random bytes from DOGEBRIDGE_LOCAL_KMS_SEED_HEX).
func NewLocalKMS(seed []byte) (*LocalKMS, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("%w: derive master key: %v", config.ErrKMS, err)
	}
	return &LocalKMS{master: master}, nil
}

func (k *LocalKMS) derive(path [][]byte) (*hdkeychain.ExtendedKey, error) {
	key := k.master
	for _, segment := range path {
		for _, idx := range pathSegmentIndices(segment) {
			child, err := key.Child(idx)
			if err != nil {
				return nil, fmt.Errorf("%w: derive child %d: %v", config.ErrKMS, idx, err)
			}
			key = child
		}
	}
	return key, nil
}

// pathSegmentIndices converts an arbitrary byte string into a sequence of
// non-hardened BIP32 child indices, 4 bytes at a time. This mirrors
// internal/keys.chunksToIndices so that a derivation path expressed the
// same way on the public (internal/keys) and private (here) sides produces
// matching keys.
func pathSegmentIndices(b []byte) []uint32 {
	padded := make([]byte, ((len(b)+3)/4)*4)
	copy(padded, b)

	indices := make([]uint32, 0, len(padded)/4)
	for i := 0; i < len(padded); i += 4 {
		v := binary.BigEndian.Uint32(padded[i : i+4])
		indices = append(indices, v&^hdkeychain.HardenedKeyStart)
	}
	return indices
}

// PublicKey implements Client.
func (k *LocalKMS) PublicKey(_ context.Context, path [][]byte) ([]byte, []byte, error) {
	key, err := k.derive(path)
	if err != nil {
		return nil, nil, err
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: extract pubkey: %v", config.ErrKMS, err)
	}
	return pub.SerializeCompressed(), key.ChainCode(), nil
}

// Sign implements Client, returning a 64-byte compact (r||s) signature.
func (k *LocalKMS) Sign(_ context.Context, path [][]byte, message [32]byte) ([64]byte, error) {
	var out [64]byte

	key, err := k.derive(path)
	if err != nil {
		return out, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return out, fmt.Errorf("%w: extract privkey: %v", config.ErrKMS, err)
	}

	sig := ecdsa.Sign(priv, message[:])
	r, s, err := decodeDERSignature(sig.Serialize())
	if err != nil {
		return out, fmt.Errorf("%w: %v", config.ErrKMS, err)
	}
	copy(out[:32], r)
	copy(out[32:], s)
	return out, nil
}

// SignProxyToken signs under the fixed proxy-token derivation path.
func (k *LocalKMS) SignProxyToken(ctx context.Context, message [32]byte) ([64]byte, error) {
	return k.Sign(ctx, ProxyTokenPath, message)
}

// decodeDERSignature extracts 32-byte big-endian-padded R and S values
// from a DER-encoded ECDSA signature (SEQUENCE { INTEGER r, INTEGER s }).
func decodeDERSignature(der []byte) (r, s []byte, err error) {
	if len(der) < 8 || der[0] != 0x30 {
		return nil, nil, fmt.Errorf("malformed DER signature")
	}
	pos := 2 // skip tag + length byte (signatures here are always short-form)
	r, pos, err = readDERInt(der, pos)
	if err != nil {
		return nil, nil, err
	}
	s, pos, err = readDERInt(der, pos)
	if err != nil {
		return nil, nil, err
	}
	return pad32(r), pad32(s), nil
}

func readDERInt(der []byte, pos int) ([]byte, int, error) {
	if pos+2 > len(der) || der[pos] != 0x02 {
		return nil, 0, fmt.Errorf("malformed DER integer")
	}
	length := int(der[pos+1])
	pos += 2
	if pos+length > len(der) {
		return nil, 0, fmt.Errorf("malformed DER integer length")
	}
	v := der[pos : pos+length]
	return v, pos + length, nil
}

func pad32(v []byte) []byte {
	// DER integers may carry a leading 0x00 to signal a positive number
	// whose high bit would otherwise look negative; strip it before
	// left-padding to 32 bytes.
	for len(v) > 32 && v[0] == 0x00 {
		v = v[1:]
	}
	out := make([]byte, 32)
	copy(out[32-len(v):], v)
	return out
}

var _ Client = (*LocalKMS)(nil)
