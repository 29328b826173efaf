package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/dogebridge/dogebridge/internal/codec"
	"github.com/dogebridge/dogebridge/internal/models"
)

// PutConfirmedAddrUtxo records u as confirmed-unspent for addr.
func (s *Store) PutConfirmedAddrUtxo(addr [21]byte, u models.Utxo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketConfirmedAddrUtxos).CreateBucketIfNotExists(addr[:])
		if err != nil {
			return err
		}
		return b.Put(UtxoKey(u), nil)
	})
}

// DeleteConfirmedAddrUtxo removes u from addr's confirmed-unspent set.
func (s *Store) DeleteConfirmedAddrUtxo(addr [21]byte, u models.Utxo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfirmedAddrUtxos).Bucket(addr[:])
		if b == nil {
			return nil
		}
		return b.Delete(UtxoKey(u))
	})
}

// ListConfirmedAddrUtxos returns addr's confirmed-unspent set ordered by
// (height, txid, vout, value), the bucket's native key order.
func (s *Store) ListConfirmedAddrUtxos(addr [21]byte) ([]models.Utxo, error) {
	var out []models.Utxo
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfirmedAddrUtxos).Bucket(addr[:])
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, DecodeUtxoKey(k))
			return nil
		})
	})
	return out, err
}

// DeleteConfirmedAddrBucket drops addr's confirmed-unspent set entirely,
// once both its unspent and spent-pending volatile entries are empty.
func (s *Store) DeleteConfirmedAddrBucket(addr [21]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketConfirmedAddrUtxos).DeleteBucket(addr[:])
		if err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return nil
	})
}

// PutConfirmedUnspentTx stores the confirmed-layer unspent-tx row for txid.
func (s *Store) PutConfirmedUnspentTx(txid codec.Hash, entry models.UnspentTxEntry) error {
	b, err := encode(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfirmedUnspentTx).Put(txid[:], b)
	})
}

// GetConfirmedUnspentTx loads the confirmed-layer unspent-tx row for txid.
func (s *Store) GetConfirmedUnspentTx(txid codec.Hash) (*models.UnspentTxEntry, bool, error) {
	var entry models.UnspentTxEntry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConfirmedUnspentTx).Get(txid[:])
		if v == nil {
			return nil
		}
		found = true
		return decode(v, &entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("get confirmed unspent tx %s: %w", txid, err)
	}
	if !found {
		return nil, false, nil
	}
	return &entry, true, nil
}

// DeleteConfirmedUnspentTx removes txid's confirmed-layer row, once every
// output has been spent at or before the confirmed tip.
func (s *Store) DeleteConfirmedUnspentTx(txid codec.Hash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfirmedUnspentTx).Delete(txid[:])
	})
}
