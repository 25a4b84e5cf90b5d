package store

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltBucket = "kv"

// Bolt is a Store backed by an embedded bbolt database. Useful for
// single-node deployments and tests where a networked store is overkill.
type Bolt struct {
	db *bolt.DB
	lastError
}

// OpenBolt opens or creates the database file at path and ensures the kv
// bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: ensure bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Get returns the value for key, or ErrNotFound when the key is absent.
func (b *Bolt) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, b.record(fmt.Errorf("bolt: get %q: %w", key, err))
	}
	if !found {
		return nil, b.record(ErrNotFound)
	}
	b.record(nil)
	return out, nil
}

// Put stores value under key.
func (b *Bolt) Put(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), value)
	})
	if err != nil {
		return b.record(fmt.Errorf("bolt: put %q: %w", key, err))
	}
	return b.record(nil)
}

// Delete removes key. Deleting an absent key succeeds.
func (b *Bolt) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
	if err != nil {
		return b.record(fmt.Errorf("bolt: delete %q: %w", key, err))
	}
	return b.record(nil)
}

// Close closes the underlying database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
