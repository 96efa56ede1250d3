package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no listing is stored for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for listing persistence.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store at the given directory.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the listing stored for archivePath.
func (s *Store) Get(archivePath string) (*Listing, error) {
	var listing Listing

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(archivePath))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(listing.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// Put stores a listing for archivePath, replacing any previous one.
func (s *Store) Put(archivePath string, listing *Listing) error {
	value, err := listing.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(archivePath), value)
	})
}

// Delete removes the listing for archivePath.
func (s *Store) Delete(archivePath string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(archivePath))
	})
}

// Keys returns the archive paths that currently have a stored listing.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return keys, err
}

// DropAll removes every stored listing.
func (s *Store) DropAll() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}
