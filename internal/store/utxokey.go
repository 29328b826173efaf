package store

import (
	"encoding/binary"

	"github.com/dogebridge/dogebridge/internal/models"
)

// utxoKeyLen is the fixed-width (height, txid, vout, value) key every
// ordered UTXO bucket uses, so bbolt's native byte-order iteration gives
// the (height, txid, vout, value) sort order the query contract and burn
// selection both rely on. Height and value are big-endian so that, unlike
// little-endian, byte-order comparison matches numeric comparison.
const utxoKeyLen = 8 + 32 + 4 + 8

// UtxoKey encodes u as the fixed-width sort key used across every ordered
// UTXO bucket.
func UtxoKey(u models.Utxo) []byte {
	key := make([]byte, utxoKeyLen)
	binary.BigEndian.PutUint64(key[0:8], uint64(u.Height))
	copy(key[8:40], u.TxID[:])
	binary.BigEndian.PutUint32(key[40:44], u.Vout)
	binary.BigEndian.PutUint64(key[44:52], uint64(u.Value))
	return key
}

// DecodeUtxoKey is the inverse of UtxoKey.
func DecodeUtxoKey(key []byte) models.Utxo {
	var u models.Utxo
	u.Height = int64(binary.BigEndian.Uint64(key[0:8]))
	copy(u.TxID[:], key[8:40])
	u.Vout = binary.BigEndian.Uint32(key[40:44])
	u.Value = int64(binary.BigEndian.Uint64(key[44:52]))
	return u
}
