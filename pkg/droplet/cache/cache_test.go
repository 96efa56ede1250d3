package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_LookupMiss(t *testing.T) {
	c := openTestCache(t)

	files, ok, err := c.Lookup("/games/missing.zip", 10, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, files)
}

func TestCache_RememberAndLookup(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Unix(1700000000, 42)

	want := []File{
		{Path: "bin/game.exe", Permission: 0o744, Size: 4096},
		{Path: "data/level 1.pak", Permission: 0o744, Size: 0},
	}
	require.NoError(t, c.Remember("/games/game.zip", 8192, modTime, want))

	got, ok, err := c.Lookup("/games/game.zip", 8192, modTime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_StaleEntries(t *testing.T) {
	c := openTestCache(t)
	modTime := time.Unix(1700000000, 0)
	require.NoError(t, c.Remember("/games/game.7z", 100, modTime, []File{{Path: "a", Size: 1}}))

	_, ok, err := c.Lookup("/games/game.7z", 101, modTime)
	require.NoError(t, err)
	assert.False(t, ok, "size change must invalidate the listing")

	_, ok, err = c.Lookup("/games/game.7z", 100, modTime.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "mtime change must invalidate the listing")
}

func TestCache_ForgetAndClear(t *testing.T) {
	c := openTestCache(t)
	now := time.Now()

	require.NoError(t, c.Remember("/a.zip", 1, now, nil))
	require.NoError(t, c.Remember("/b.zip", 2, now, nil))

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a.zip", "/b.zip"}, entries)

	require.NoError(t, c.Forget("/a.zip"))
	_, ok, err := c.Lookup("/a.zip", 1, now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	entries, err = c.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
