package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/dogebridge/dogebridge/internal/config"
)

// Address is a 21-byte version||hash160 value and its base58check string form.
type Address struct {
	Version byte
	Hash    [20]byte
}

// NewAddress constructs an Address for the given network version byte.
func NewAddress(version byte, hash [20]byte) Address {
	return Address{Version: version, Hash: hash}
}

// Bytes returns the 21-byte version||hash160 form.
func (a Address) Bytes() [21]byte {
	var out [21]byte
	out[0] = a.Version
	copy(out[1:], a.Hash[:])
	return out
}

// String returns the base58check encoding of the address.
func (a Address) String() string {
	return base58.CheckEncode(a.Hash[:], a.Version)
}

// Script returns the P2PKH scriptPubKey locking funds to this address.
// Callers needing a P2SH script construct it directly via NewP2SHScript.
func (a Address) Script() []byte {
	return NewP2PKHScript(a.Hash)
}

// ParseAddress decodes a base58check string into a 21-byte address,
// validating the checksum and that the hash is exactly 20 bytes.
func ParseAddress(s string) (Address, error) {
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", config.ErrBadAddress, err)
	}
	if len(payload) != 20 {
		return Address{}, fmt.Errorf("%w: hash length %d, want 20", config.ErrBadAddress, len(payload))
	}
	var hash [20]byte
	copy(hash[:], payload)
	return Address{Version: version, Hash: hash}, nil
}
