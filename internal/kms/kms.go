// Package kms defines the threshold-ECDSA signer contract the chain
// indexer and minter depend on, plus a local single-key reference
// implementation used by tests and the dev binaries.
package kms

import (
	"context"
)

// Client is the threshold ECDSA signer contract: a path selects a
// deterministic child key, never exposing a private key to the caller.
type Client interface {
	// PublicKey returns the compressed public key and chain code for path.
	PublicKey(ctx context.Context, path [][]byte) (pubKey []byte, chainCode []byte, err error)

	// Sign returns a 64-byte compact (r||s) signature over a 32-byte
	// message digest under path.
	Sign(ctx context.Context, path [][]byte, message [32]byte) (signature [64]byte, err error)
}

// ProxyTokenPath is the fixed derivation path reserved for signing RPC
// proxy tokens.
var ProxyTokenPath = [][]byte{[]byte("sign_proxy_token")}
