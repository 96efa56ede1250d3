package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listingLine renders an entry the way `7z l -ba` does.
func listingLine(date, attrs, size, compressed, name string) string {
	return fmt.Sprintf("%-19s %-5s %12s %12s  %s", date, attrs, size, compressed, name)
}

const fakeSevenZip = `#!/bin/sh
dir="$(dirname "$0")"
case "$1" in
l)
	cat "$dir/listing.txt" || exit 2
	;;
e)
	f="$dir/content/$4"
	if [ ! -f "$f" ]; then
		echo "No files to process" >&2
		exit 2
	fi
	cat "$f"
	;;
*)
	exit 7
	;;
esac
`

// installFake7z writes a fake 7z script serving listing and the given
// entries, returning its path.
func installFake7z(t *testing.T, listing string, entries map[string]string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake 7z requires a POSIX shell")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "7z")
	require.NoError(t, os.WriteFile(bin, []byte(fakeSevenZip), 0o755))
	if listing != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "listing.txt"), []byte(listing), 0o644))
	}
	for name, content := range entries {
		full := filepath.Join(dir, "content", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return bin
}

func TestParseListing(t *testing.T) {
	out := strings.Join([]string{
		listingLine("2024-03-01 10:00:00", "D....", "0", "0", "bin"),
		listingLine("2024-03-01 10:00:00", "....A", "1024", "512", "bin/game.exe"),
		listingLine("2024-03-01 10:00:00", "....A", "77", "", "data/level one.pak"),
		listingLine("2024-03-01 10:00:00", "....A", "0", "", "empty"),
		listingLine("", "....A", "5", "5", "no date.txt") + "\r",
		"",
	}, "\n")

	files, err := parseListing([]byte(out))
	require.NoError(t, err)

	assert.Equal(t, []SourceFile{
		{Path: "bin/game.exe", Permission: 0o744, Size: 1024},
		{Path: "data/level one.pak", Permission: 0o744, Size: 77},
		{Path: "empty", Permission: 0o744, Size: 0},
		{Path: "no date.txt", Permission: 0o744, Size: 5},
	}, files)
}

func TestParseListing_WhitespaceFallback(t *testing.T) {
	files, err := parseListing([]byte("2024-03-01 10:00:00 ....A 42 40 some  spaced name\n"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "some spaced name", files[0].Path)
	assert.Equal(t, uint64(42), files[0].Size)
}

func TestParseListing_Malformed(t *testing.T) {
	_, err := parseListing([]byte("garbage line\n"))
	assert.ErrorIs(t, err, ErrEnumeration)

	_, err = parseListing([]byte("2024-03-01 10:00:00 ....A notasize 40 name\n"))
	assert.ErrorIs(t, err, ErrEnumeration)
}

func TestArchiveSource_EnumerateAndRead(t *testing.T) {
	listing := strings.Join([]string{
		listingLine("2024-03-01 10:00:00", "D....", "0", "0", "assets"),
		listingLine("2024-03-01 10:00:00", "....A", "11", "11", "assets/hello world.txt"),
		listingLine("2024-03-01 10:00:00", "....A", "3", "", "run.sh"),
	}, "\n") + "\n"
	bin := installFake7z(t, listing, map[string]string{
		"assets/hello world.txt": "hello world",
		"run.sh":                 "#!x",
	})

	src := NewArchiveSource("/games/TheGame.zip", bin)
	assert.True(t, src.RequiresWholeFiles())

	files, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "assets/hello world.txt", files[0].Path)
	assert.Equal(t, "run.sh", files[1].Path)

	r, err := src.OpenRange(context.Background(), files[0], 0, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello world", string(data))

	file, err := Peek(context.Background(), src, "run.sh")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), file.Size)

	_, err = Peek(context.Background(), src, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveSource_RejectsRanges(t *testing.T) {
	src := NewArchiveSource("/games/TheGame.zip", "7z")

	_, err := src.OpenRange(context.Background(), SourceFile{Path: "a", Size: 10}, 0, 10)
	assert.ErrorIs(t, err, ErrRead)
}

func TestArchiveSource_ExtractionFailure(t *testing.T) {
	bin := installFake7z(t, "", nil)
	src := NewArchiveSource("/games/TheGame.zip", bin)

	r, err := src.OpenRange(context.Background(), SourceFile{Path: "missing"}, 0, 0)
	require.NoError(t, err)
	_, _ = io.ReadAll(r)

	err = r.Close()
	assert.ErrorIs(t, err, ErrRead)
	assert.NoError(t, r.Close(), "second close is a no-op")
}

func TestArchiveSource_ListFailure(t *testing.T) {
	bin := installFake7z(t, "", nil)
	src := NewArchiveSource("/games/TheGame.zip", bin)

	_, err := src.Enumerate(context.Background())
	assert.ErrorIs(t, err, ErrEnumeration)
}

func TestArchiveSource_MissingBinary(t *testing.T) {
	src := NewArchiveSource("/games/TheGame.zip", filepath.Join(t.TempDir(), "no-7z"))

	_, err := src.Enumerate(context.Background())
	assert.ErrorIs(t, err, ErrEnumeration)

	_, err = src.OpenRange(context.Background(), SourceFile{Path: "a"}, 0, 0)
	assert.ErrorIs(t, err, ErrRead)
}
