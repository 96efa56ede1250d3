package source

import (
	"context"
	"os"
	"time"

	"github.com/Drop-OSS/droplet/pkg/droplet/cache"
	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

// ListingCache stores enumeration results keyed by archive path.
type ListingCache interface {
	Lookup(archivePath string, size int64, modTime time.Time) ([]cache.File, bool, error)
	Remember(archivePath string, size int64, modTime time.Time, files []cache.File) error
	Forget(archivePath string) error
}

// CachedSource serves Enumerate from a ListingCache while the file at key
// keeps its size and modification time. Reads go to the wrapped source.
type CachedSource struct {
	Source
	cache ListingCache
	key   string
}

// Cached wraps src. key is the path whose metadata validates the cache,
// normally the archive path.
func Cached(src Source, c ListingCache, key string) *CachedSource {
	return &CachedSource{Source: src, cache: c, key: key}
}

// Enumerate returns the cached listing if it is still valid, otherwise
// enumerates the wrapped source and stores the result. A listing that
// cannot be read is dropped. Cache failures are logged and never fail
// enumeration.
func (c *CachedSource) Enumerate(ctx context.Context) ([]SourceFile, error) {
	log := logging.Get("cache")

	info, statErr := os.Stat(c.key)
	if statErr == nil {
		cached, ok, err := c.cache.Lookup(c.key, info.Size(), info.ModTime())
		switch {
		case err != nil:
			log.Warn("listing cache lookup failed", "path", c.key, "error", err)
			if err := c.cache.Forget(c.key); err != nil {
				log.Warn("failed to drop unreadable listing", "path", c.key, "error", err)
			}
		case ok:
			log.Debug("listing cache hit", "path", c.key, "files", len(cached))
			return fromCacheFiles(cached), nil
		}
	}

	files, err := c.Source.Enumerate(ctx)
	if err != nil {
		return nil, err
	}

	if statErr == nil {
		if err := c.cache.Remember(c.key, info.Size(), info.ModTime(), toCacheFiles(files)); err != nil {
			log.Warn("listing cache store failed", "path", c.key, "error", err)
		}
	}
	return files, nil
}

func toCacheFiles(files []SourceFile) []cache.File {
	out := make([]cache.File, len(files))
	for i, f := range files {
		out[i] = cache.File{Path: f.Path, Permission: f.Permission, Size: f.Size}
	}
	return out
}

func fromCacheFiles(files []cache.File) []SourceFile {
	out := make([]SourceFile, len(files))
	for i, f := range files {
		out[i] = SourceFile{Path: f.Path, Permission: f.Permission, Size: f.Size}
	}
	return out
}
