package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drop-OSS/droplet/pkg/droplet/cache"
)

type countingSource struct {
	files []SourceFile
	err   error
	calls int
}

func (c *countingSource) Enumerate(context.Context) ([]SourceFile, error) {
	c.calls++
	return c.files, c.err
}

func (c *countingSource) RequiresWholeFiles() bool { return true }

func (c *countingSource) OpenRange(context.Context, SourceFile, uint64, uint64) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func TestCached_ServesUnchangedArchiveFromCache(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	archive := filepath.Join(t.TempDir(), "game.zip")
	require.NoError(t, os.WriteFile(archive, []byte("v1"), 0o644))

	inner := &countingSource{files: []SourceFile{
		{Path: "a.bin", Permission: 0o744, Size: 10},
		{Path: "b.bin", Permission: 0o744, Size: 20},
	}}
	src := Cached(inner, c, archive)
	assert.True(t, src.RequiresWholeFiles())

	first, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	second, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	// Changing the archive invalidates the listing.
	require.NoError(t, os.WriteFile(archive, []byte("version two"), 0o644))
	require.NoError(t, os.Chtimes(archive, time.Now().Add(time.Minute), time.Now().Add(time.Minute)))

	_, err = src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	archive := filepath.Join(t.TempDir(), "game.zip")
	require.NoError(t, os.WriteFile(archive, []byte("v1"), 0o644))

	inner := &countingSource{err: ErrEnumeration}
	src := Cached(inner, c, archive)

	_, err = src.Enumerate(context.Background())
	assert.ErrorIs(t, err, ErrEnumeration)
	_, err = src.Enumerate(context.Background())
	assert.ErrorIs(t, err, ErrEnumeration)
	assert.Equal(t, 2, inner.calls)
}

// brokenCache fails every lookup and records what is forgotten.
type brokenCache struct {
	forgotten  []string
	remembered int
}

func (b *brokenCache) Lookup(string, int64, time.Time) ([]cache.File, bool, error) {
	return nil, false, errors.New("corrupt listing")
}

func (b *brokenCache) Remember(string, int64, time.Time, []cache.File) error {
	b.remembered++
	return nil
}

func (b *brokenCache) Forget(archivePath string) error {
	b.forgotten = append(b.forgotten, archivePath)
	return nil
}

func TestCached_DropsUnreadableListing(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "game.zip")
	require.NoError(t, os.WriteFile(archive, []byte("v1"), 0o644))

	inner := &countingSource{files: []SourceFile{{Path: "a.bin", Size: 10}}}
	c := &brokenCache{}
	src := Cached(inner, c, archive)

	files, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, inner.files, files)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []string{archive}, c.forgotten)
	assert.Equal(t, 1, c.remembered)
}

func TestPeek_FallsBackToEnumerate(t *testing.T) {
	inner := &countingSource{files: []SourceFile{{Path: "x", Size: 1}}}

	file, err := Peek(context.Background(), inner, "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), file.Size)

	_, err = Peek(context.Background(), inner, "y")
	assert.ErrorIs(t, err, ErrNotFound)
}
