package cache

import (
	"errors"
	"time"
)

// Cache provides listing lookups validated against archive metadata.
type Cache struct {
	store *Store
}

// Open opens or creates a cache in the given directory.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the cached files for archivePath if the stored listing
// was taken from an archive with the same size and modification time.
// A stale or missing entry reports ok == false with a nil error.
func (c *Cache) Lookup(archivePath string, size int64, modTime time.Time) (files []File, ok bool, err error) {
	listing, err := c.store.Get(archivePath)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if listing.Version != Version || listing.Size != size || listing.ModTime != modTime.UnixNano() {
		return nil, false, nil
	}
	return listing.Files, true, nil
}

// Remember stores the listing of archivePath along with its metadata.
func (c *Cache) Remember(archivePath string, size int64, modTime time.Time, files []File) error {
	return c.store.Put(archivePath, &Listing{
		Version: Version,
		Size:    size,
		ModTime: modTime.UnixNano(),
		Files:   files,
	})
}

// Forget removes any listing for archivePath.
func (c *Cache) Forget(archivePath string) error {
	return c.store.Delete(archivePath)
}

// Entries returns the archive paths with a stored listing.
func (c *Cache) Entries() ([]string, error) {
	return c.store.Keys()
}

// Clear removes every stored listing.
func (c *Cache) Clear() error {
	return c.store.DropAll()
}
