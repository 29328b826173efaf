package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"github.com/dogebridge/dogebridge/internal/models"
)

// PutMintedUtxo records that u has been minted to owner's ledger balance.
func (s *Store) PutMintedUtxo(owner string, rec models.MintedUtxoRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		ob, err := tx.Bucket(bucketMintedUtxos).CreateBucketIfNotExists([]byte(owner))
		if err != nil {
			return err
		}
		return ob.Put(UtxoKey(rec.Utxo), b)
	})
}

// HasMintedUtxo reports whether u has already been minted for owner.
func (s *Store) HasMintedUtxo(owner string, u models.Utxo) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ob := tx.Bucket(bucketMintedUtxos).Bucket([]byte(owner))
		if ob == nil {
			return nil
		}
		found = ob.Get(UtxoKey(u)) != nil
		return nil
	})
	return found, err
}

// PutCollectedUtxo inserts u into the global collected-UTXO set, keyed so
// a full scan visits entries ordered by (height, txid, vout, value) —
// the order burn selection scans in.
func (s *Store) PutCollectedUtxo(rec models.CollectedUtxoRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCollectedUtxos).Put(UtxoKey(rec.Utxo), b)
	})
}

// GetCollectedUtxo loads a single collected-UTXO record.
func (s *Store) GetCollectedUtxo(u models.Utxo) (*models.CollectedUtxoRecord, bool, error) {
	var rec models.CollectedUtxoRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCollectedUtxos).Get(UtxoKey(u))
		if v == nil {
			return nil
		}
		found = true
		return decode(v, &rec)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &rec, true, nil
}

// DeleteCollectedUtxo removes a collected-UTXO record (garbage collection
// once its spending tx is deep enough below the confirmed tip).
func (s *Store) DeleteCollectedUtxo(u models.Utxo) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCollectedUtxos).Delete(UtxoKey(u))
	})
}

// ForEachCollectedUtxo visits every collected-UTXO record ordered by
// (height, txid, vout, value), stopping early if fn returns false.
func (s *Store) ForEachCollectedUtxo(fn func(models.CollectedUtxoRecord) (bool, error)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCollectedUtxos).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec models.CollectedUtxoRecord
			if err := decode(v, &rec); err != nil {
				return err
			}
			cont, err := fn(rec)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

func ledgerBlockKey(ledgerBlock uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, ledgerBlock)
	return key
}

// PutBurnedUtxo records the UTXO set spent by a completed burn.
func (s *Store) PutBurnedUtxo(ledgerBlock uint64, rec models.BurnedUtxoRecord) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBurnedUtxos).Put(ledgerBlockKey(ledgerBlock), b)
	})
}

// GetBurnedUtxo loads the burned-UTXO record for ledgerBlock.
func (s *Store) GetBurnedUtxo(ledgerBlock uint64) (*models.BurnedUtxoRecord, bool, error) {
	var rec models.BurnedUtxoRecord
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBurnedUtxos).Get(ledgerBlockKey(ledgerBlock))
		if v == nil {
			return nil
		}
		found = true
		return decode(v, &rec)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &rec, true, nil
}

// PutBurningIndex records an in-flight burn awaiting a spending tx.
func (s *Store) PutBurningIndex(ledgerBlock uint64, entry models.BurningIndexEntry) error {
	b, err := encode(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBurningIndex).Put(ledgerBlockKey(ledgerBlock), b)
	})
}

// GetBurningIndex loads the in-flight burn entry for ledgerBlock.
func (s *Store) GetBurningIndex(ledgerBlock uint64) (*models.BurningIndexEntry, bool, error) {
	var entry models.BurningIndexEntry
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBurningIndex).Get(ledgerBlockKey(ledgerBlock))
		if v == nil {
			return nil
		}
		found = true
		return decode(v, &entry)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &entry, true, nil
}

// DeleteBurningIndex clears a burn's in-flight entry once it has produced
// a spending transaction.
func (s *Store) DeleteBurningIndex(ledgerBlock uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBurningIndex).Delete(ledgerBlockKey(ledgerBlock))
	})
}
