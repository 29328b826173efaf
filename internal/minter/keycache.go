package minter

import (
	"context"
	"fmt"
	"sync"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/keys"
	"github.com/dogebridge/dogebridge/internal/kms"
	"github.com/dogebridge/dogebridge/internal/script"
)

// keyMaterial memoizes one depositor's derived signing key for the
// lifetime of a single burn call.
type keyMaterial struct {
	path   []uint32
	pubKey []byte
	script []byte
}

// KeyCache memoizes (derivation_path, pubkey, scriptPubKey) per depositor
// principal across the inputs selected for one burn, so a batch spending
// many UTXOs from the same depositor fetches that depositor's public key
// from the KMS only once.
type KeyCache struct {
	mu      sync.Mutex
	kms     kms.Client
	service []byte
	params  config.NetworkParams
	entries map[string]keyMaterial
}

// NewKeyCache builds an empty cache. service is the minter's own
// principal, the fixed owner every depositor's address is derived under.
func NewKeyCache(kmsClient kms.Client, service []byte, params config.NetworkParams) *KeyCache {
	return &KeyCache{kms: kmsClient, service: service, params: params, entries: make(map[string]keyMaterial)}
}

// Get returns depositor's derivation path, compressed public key and
// P2PKH scriptPubKey, deriving and caching them on first use.
func (c *KeyCache) Get(ctx context.Context, depositorPrincipal string) (path []uint32, pubKey, scriptPubKey []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.entries[depositorPrincipal]; ok {
		return m.path, m.pubKey, m.script, nil
	}

	subaccount := account.DepositSubaccount([]byte(depositorPrincipal))
	derivedPath := keys.AccountPath(c.service, subaccount)
	pub, _, err := c.kms.PublicKey(ctx, keys.PathSegments(derivedPath))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: derive depositor key: %v", config.ErrKMS, err)
	}
	hash := script.Hash160(pub)
	addrScript := script.NewAddress(c.params.P2PKHVersion, hash).Script()

	c.entries[depositorPrincipal] = keyMaterial{path: derivedPath, pubKey: pub, script: addrScript}
	return derivedPath, pub, addrScript, nil
}
