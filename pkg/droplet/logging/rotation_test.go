package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

func countLogFiles(t *testing.T, dir, prefix string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".log") {
			count++
		}
	}
	return count
}

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := logging.NewRotatingWriter(filepath.Join(dir, "size.log"), logging.RotationConfig{
		MaxSize: 256,
	})
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 10; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, w.Close())

	assert.GreaterOrEqual(t, countLogFiles(t, dir, "size"), 2)
}

func TestRotatingWriter_MaxBackups(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := logging.NewRotatingWriter(filepath.Join(dir, "backups.log"), logging.RotationConfig{
		MaxSize:    64,
		MaxBackups: 2,
	})
	require.NoError(t, err)

	line := []byte(strings.Repeat("y", 50) + "\n")
	for i := 0; i < 12; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, w.Close())

	// The live file plus at most two rotated backups.
	assert.LessOrEqual(t, countLogFiles(t, dir, "backups"), 3)
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := logging.NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), logging.DefaultRotationConfig())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
