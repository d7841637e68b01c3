// Package authstore is the disk-resident key-value store backing
// <data_dir>/auth/. Authentication business logic (credential schemes,
// session tokens, privilege checks) lives outside this engine; this package
// only gives that external consumer a durable place to keep its bytes,
// exactly as spec 6 describes it: "a key-value consumer unrelated to the
// graph."
package authstore

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Store is a thin Badger-backed KV store, grounded on the teacher's own use
// of Badger as its storage engine (pkg/storage/badger_nodes.go) but scoped
// down to plain Get/Set/Delete since there is no graph schema to maintain
// here.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("authstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key. ok is false if the key is absent.
func (s *Store) Get(key string) (value []byte, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	return value, ok, err
}

// Set stores value under key, overwriting any existing value.
func (s *Store) Set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Range calls fn for every key with the given prefix, in Badger's key order,
// stopping early if fn returns false. Used to enumerate principals or
// sessions sharing a key prefix (e.g. "user:", "session:").
func (s *Store) Range(prefix string, fn func(key string, value []byte) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var cont bool
			err := item.Value(func(v []byte) error {
				cont = fn(string(item.Key()), append([]byte(nil), v...))
				return nil
			})
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
