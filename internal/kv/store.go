// Package kv provides the persistent key-value store shared by the history
// and state engines. It wraps Badger, the embedded LSM store used
// throughout the dgraph-io-dgraph example pack, behind a small Batch-based
// API: each engine commits one Batch per applied modifier, giving it the
// all-or-nothing write each component's atomicity invariant requires.
package kv

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"
)

// Store is an opened Badger database plus the prefix-iteration and batched
// commit operations ASE and HE build their indices on.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or (nil, false) if absent.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Has reports whether key is present.
func (s *Store) Has(key []byte) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// IteratePrefix calls fn for every key with the given prefix, in ascending
// key order, stopping early if fn returns false.
func (s *Store) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			k := append([]byte(nil), item.Key()...)
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

// Batch accumulates a set of writes committed atomically by Commit. It is
// the unit of persistence for one apply/rollback operation.
type Batch struct {
	sets    map[string][]byte
	deletes map[string]bool
	order   []string
}

// NewBatch returns an empty Batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{sets: make(map[string][]byte), deletes: make(map[string]bool)}
}

func (b *Batch) staged(k string) bool {
	if _, ok := b.sets[k]; ok {
		return true
	}
	_, ok := b.deletes[k]
	return ok
}

// Set stages a key/value write.
func (b *Batch) Set(key, value []byte) {
	k := string(key)
	if !b.staged(k) {
		b.order = append(b.order, k)
	}
	b.sets[k] = append([]byte(nil), value...)
	delete(b.deletes, k)
}

// Delete stages a key deletion.
func (b *Batch) Delete(key []byte) {
	k := string(key)
	if !b.staged(k) {
		b.order = append(b.order, k)
	}
	b.deletes[k] = true
	delete(b.sets, k)
}

// Commit writes every staged operation in a single Badger transaction.
func (s *Store) Commit(b *Batch) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range b.order {
			key := []byte(k)
			if b.deletes[k] {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(key, b.sets[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

// JoinKey concatenates key parts with a null-byte separator, the convention
// used by every prefix key this package builds (e.g. heightIndex(h)).
func JoinKey(parts ...[]byte) []byte {
	return bytes.Join(parts, []byte{0})
}
