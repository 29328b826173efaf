package sign

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/dogebridge/dogebridge/internal/codec"
)

// SignWithPrivateKey produces a low-S DER signature over a sighash digest.
// ecdsa.Sign enforces low-S and RFC6979 deterministic nonces by default,
// matching the consensus rule every node in this family enforces.
func SignWithPrivateKey(priv *btcec.PrivateKey, sighash codec.Hash) []byte {
	sig := ecdsa.Sign(priv, sighash[:])
	return sig.Serialize()
}

// VerifySignature checks a DER signature against a compressed pubkey and
// sighash digest, used by tests and by optional defensive checks before a
// signed transaction is submitted.
func VerifySignature(pubkey *btcec.PublicKey, sighash codec.Hash, sigDER []byte) (bool, error) {
	sig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false, err
	}
	return sig.Verify(sighash[:], pubkey), nil
}

// BuildP2PKHScriptSig assembles <sig||sighashType> <compressed_pubkey>.
func BuildP2PKHScriptSig(sigDER []byte, sighashType byte, compressedPubkey []byte) []byte {
	sigPush := append(append([]byte{}, sigDER...), sighashType)

	out := make([]byte, 0, 1+len(sigPush)+1+len(compressedPubkey))
	out = append(out, pushLen(len(sigPush))...)
	out = append(out, sigPush...)
	out = append(out, pushLen(len(compressedPubkey))...)
	out = append(out, compressedPubkey...)
	return out
}

// pushLen returns the minimal-push opcode prefix for a data push of n bytes.
// Signatures and compressed pubkeys are always well under 76 bytes, so a
// direct single-byte length opcode suffices here.
func pushLen(n int) []byte {
	return []byte{byte(n)}
}
