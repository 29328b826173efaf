package minter

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// nowMs returns the current time in epoch milliseconds, the clock every
// pending-finality age check reads.
func nowMs() int64 {
	return time.Now().UnixMilli()
}

// compactToDER converts a 64-byte (r||s) compact signature into the DER
// encoding a legacy scriptSig carries.
func compactToDER(sig [64]byte) []byte {
	var r, s btcec.ModNScalar
	r.SetByteSlice(sig[:32])
	s.SetByteSlice(sig[32:])
	return ecdsa.NewSignature(&r, &s).Serialize()
}
