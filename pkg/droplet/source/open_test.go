package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupportedArchive(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"game.zip", true},
		{"GAME.ZIP", true},
		{"/abs/path/build.7z", true},
		{"release.tar", true},
		{"disc.iso", true},
		{"setup.rar", true},
		{"notes.txt", false},
		{"game.exe", false},
		{"noextension", false},
		{"archive.tar.gz", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, SupportedArchive(tt.path))
		})
	}
}

func TestOpen_Directory(t *testing.T) {
	src, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &DirSource{}, src)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestOpen_ArchiveWithoutSevenZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	_, err := Open(path, Options{SevenZipBinary: filepath.Join(t.TempDir(), "absent-7z")})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestOpen_Archive(t *testing.T) {
	bin := installFake7z(t, "", nil)
	path := filepath.Join(t.TempDir(), "game.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	src, err := Open(path, Options{SevenZipBinary: bin})
	require.NoError(t, err)

	archive, ok := src.(*ArchiveSource)
	require.True(t, ok)
	assert.Equal(t, path, archive.Path())
	assert.True(t, SevenZipAvailable(bin))
}
