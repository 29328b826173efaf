// Package store persists the chain indexer's confirmed UTXO layer and the
// minter's collected/minted/burned-UTXO bookkeeping in a single bbolt file,
// with values CBOR-encoded behind typed accessor methods.
package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/dogebridge/dogebridge/internal/config"
)

var (
	bucketState              = []byte("state")
	bucketConfirmedUnspentTx = []byte("confirmed_unspent_tx")
	bucketConfirmedAddrUtxos = []byte("confirmed_addr_utxos")
	bucketMintedUtxos        = []byte("minted_utxos")
	bucketCollectedUtxos     = []byte("collected_utxos")
	bucketBurnedUtxos        = []byte("burned_utxos")
	bucketBurningIndex       = []byte("burning_index")

	topLevelBuckets = [][]byte{
		bucketState,
		bucketConfirmedUnspentTx,
		bucketConfirmedAddrUtxos,
		bucketMintedUtxos,
		bucketCollectedUtxos,
		bucketBurnedUtxos,
		bucketBurningIndex,
	}
)

// Store wraps a bbolt database holding every stable-storage table the
// indexer and minter need.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures every
// top-level bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range topLevelBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(v any) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode store value: %w", err)
	}
	return b, nil
}

func decode(b []byte, out any) error {
	if err := cbor.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode store value: %s", config.ErrMalformed, err)
	}
	return nil
}

// PutState persists an arbitrary named CBOR cell, used for the indexer's
// monotonic height/hash counters and any other singleton state.
func (s *Store) PutState(name string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put([]byte(name), b)
	})
}

// GetState loads a named cell written by PutState into out, reporting
// whether it was present.
func (s *Store) GetState(name string, out any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketState).Get([]byte(name))
		if v == nil {
			return nil
		}
		found = true
		return decode(v, out)
	})
	return found, err
}
