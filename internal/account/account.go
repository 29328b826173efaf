// Package account derives the deterministic P2PKH deposit address owned
// by a given (owner, subaccount) pair, walking the root extended public
// key the KMS hands back once through the non-hardened path internal/keys
// builds.
package account

import (
	"context"
	"crypto/sha3"
	"fmt"

	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/keys"
	"github.com/dogebridge/dogebridge/internal/kms"
	"github.com/dogebridge/dogebridge/internal/script"
)

// Deriver caches the root extended public key so every address derivation
// after the first avoids a round trip to the KMS.
type Deriver struct {
	client kms.Client
	params config.NetworkParams

	rootPubKey   []byte
	rootChainCode []byte
}

// NewDeriver fetches the root public key once under the empty path.
func NewDeriver(ctx context.Context, client kms.Client, params config.NetworkParams) (*Deriver, error) {
	pub, chainCode, err := client.PublicKey(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch root public key: %v", config.ErrKMS, err)
	}
	return &Deriver{client: client, params: params, rootPubKey: pub, rootChainCode: chainCode}, nil
}

// Address derives the P2PKH address for (ownerPrincipal, subaccount).
func (d *Deriver) Address(ownerPrincipal []byte, subaccount [32]byte) (script.Address, error) {
	path := keys.AccountPath(ownerPrincipal, subaccount)
	pub, _, err := keys.DerivePublic(d.rootPubKey, d.rootChainCode, path)
	if err != nil {
		return script.Address{}, err
	}
	hash := script.Hash160(pub.SerializeCompressed())
	return script.NewAddress(d.params.P2PKHVersion, hash), nil
}

// DepositSubaccount maps a caller's principal bytes to the distinct
// subaccount their mint deposit address is derived under.
func DepositSubaccount(callerPrincipal []byte) [32]byte {
	return sha3.Sum256(callerPrincipal)
}

// ServiceSubaccount is the zero subaccount: the service's own collected
// (change) address, as opposed to any individual caller's deposit address.
var ServiceSubaccount = [32]byte{}
