// Package keys derives per-account public keys by walking a BIP32
// extended public key the KMS hands back once; it never holds or derives
// a private key.
package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/dogebridge/dogebridge/internal/config"
)

// schemaByte tags account paths so they never collide with any other
// derivation scheme that might share the same root key.
const schemaByte = 1

// mainnetVersion is an arbitrary-but-fixed BIP32 public-key version prefix;
// it only affects the base58 extended-key string form, which this package
// never produces, so any valid 4-byte version works.
var mainnetVersion = [4]byte{0x04, 0x88, 0xb2, 0x1e} // xpub

// AccountPath builds the non-hardened derivation path
// [schema_byte, owner_principal..., subaccount...] as BIP32 child indices,
// each masked to clear the hardened bit: this package must never attempt
// hardened derivation from a public-only key.
func AccountPath(ownerPrincipal []byte, subaccount [32]byte) []uint32 {
	path := []uint32{schemaByte}
	path = append(path, chunksToIndices(ownerPrincipal)...)
	path = append(path, chunksToIndices(subaccount[:])...)
	return path
}

func chunksToIndices(b []byte) []uint32 {
	padded := make([]byte, ((len(b)+3)/4)*4)
	copy(padded, b)

	indices := make([]uint32, 0, len(padded)/4)
	for i := 0; i < len(padded); i += 4 {
		v := binary.BigEndian.Uint32(padded[i : i+4])
		indices = append(indices, v&^hdkeychain.HardenedKeyStart)
	}
	return indices
}

// PathSegments converts a child-index path into the big-endian 4-byte
// segment form kms.Client.PublicKey/Sign expect, so a path built here and
// one walked by a KMS's own private-side derivation address the same
// child key.
func PathSegments(path []uint32) [][]byte {
	segments := make([][]byte, len(path))
	for i, idx := range path {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], idx)
		segments[i] = b[:]
	}
	return segments
}

// DerivePublic walks path from the root (compressed pubkey, chain code)
// pair using non-hardened BIP32 child derivation only, returning the
// resulting public key and chain code. An index with the hardened bit set
// fails with ErrHardenedFromPublic rather than attempting the derivation
// (which would panic the underlying library, since no private key is
// available).
func DerivePublic(rootPubKey []byte, rootChainCode []byte, path []uint32) (*btcec.PublicKey, []byte, error) {
	key := hdkeychain.NewExtendedKey(mainnetVersion[:], rootPubKey, rootChainCode, nil, 0, 0, false)

	for _, idx := range path {
		if idx&hdkeychain.HardenedKeyStart != 0 {
			return nil, nil, config.ErrHardenedFromPublic
		}
		child, err := key.Child(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: derive child %d: %v", config.ErrKMS, idx, err)
		}
		key = child
	}

	pub, err := key.ECPubKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: extract pubkey: %v", config.ErrKMS, err)
	}
	return pub, key.ChainCode(), nil
}
