package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Drop-OSS/droplet/pkg/droplet/config"
	"github.com/Drop-OSS/droplet/pkg/droplet/history"
	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
	"github.com/Drop-OSS/droplet/pkg/droplet/output"
	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

// resetViper gives the test a fresh global viper with defaults and quiet
// output.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("quiet", true)
	viper.Set("history.enabled", false)
	t.Cleanup(viper.Reset)
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("format", "", "")
	cmd.Flags().String("compress", "", "")
	cmd.SetContext(context.Background())
	return cmd
}

func writeGameDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]int{
		"game.bin":         5000,
		"assets/tex.pak":   3000,
		"assets/audio.pak": 1200,
		"readme.txt":       10,
	}
	for name, size := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i*7 + len(name))
		}
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func TestOutputSettings(t *testing.T) {
	tests := []struct {
		name            string
		out             string
		flags           map[string]string
		config          map[string]string
		wantFormat      string
		wantCompression output.Compression
		wantErr         bool
	}{
		{
			name:            "defaults",
			wantFormat:      "json",
			wantCompression: output.CompressionNone,
		},
		{
			name:            "extension picks format and compression",
			out:             "manifest.cbor.zst",
			wantFormat:      "cbor",
			wantCompression: output.CompressionZstd,
		},
		{
			name:            "flag wins over extension",
			out:             "manifest.cbor.lz4",
			flags:           map[string]string{"format": "yaml", "compress": "none"},
			config:          map[string]string{"output.format": "yaml", "output.compression": "none"},
			wantFormat:      "yaml",
			wantCompression: output.CompressionNone,
		},
		{
			name:            "config used for unknown extension",
			out:             "manifest.bin",
			config:          map[string]string{"output.format": "yaml", "output.compression": "lz4"},
			wantFormat:      "yaml",
			wantCompression: output.CompressionLZ4,
		},
		{
			name:    "unknown format",
			config:  map[string]string{"output.format": "xml"},
			wantErr: true,
		},
		{
			name:    "unknown compression",
			config:  map[string]string{"output.compression": "gzip"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			for k, v := range tt.config {
				viper.Set(k, v)
			}
			cmd := testCommand()
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}

			cfg, err := loadConfig()
			require.NoError(t, err)

			format, compression, err := outputSettings(cmd, cfg, tt.out)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, tt.wantCompression, compression)
		})
	}
}

func TestGeneratorOptions(t *testing.T) {
	resetViper(t)
	viper.Set("chunk_size", "2MiB")
	viper.Set("tolerance", "16KiB")
	viper.Set("digest", "blake3")

	cfg, err := loadConfig()
	require.NoError(t, err)

	opts, err := generatorOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(2<<20), opts.ChunkSize)
	assert.Equal(t, uint64(16<<10), opts.Tolerance)
	assert.Equal(t, 1<<20, opts.ReadBuffer)
	assert.Equal(t, "blake3", opts.Digest)

	viper.Set("digest", "md5")
	cfg, err = loadConfig()
	require.NoError(t, err)
	_, err = generatorOptions(cfg)
	assert.Error(t, err)

	viper.Set("digest", "sha256")
	viper.Set("chunk_size", "lots")
	cfg, err = loadConfig()
	require.NoError(t, err)
	_, err = generatorOptions(cfg)
	assert.Error(t, err)
}

func TestOpenSourceDirectory(t *testing.T) {
	resetViper(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	src, backend, closeSrc, err := openSource(t.TempDir(), cfg, true)
	require.NoError(t, err)
	defer closeSrc()

	assert.Equal(t, "directory", backend)
	assert.IsType(t, &source.DirSource{}, src)
}

func TestOpenSourceUnsupported(t *testing.T) {
	resetViper(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, _, closeSrc, err := openSource(path, cfg, true)
	closeSrc()
	assert.ErrorIs(t, err, source.ErrNoBackend)
}

func TestRunGenerateAndVerify(t *testing.T) {
	resetViper(t)
	viper.Set("chunk_size", "4KiB")
	viper.Set("tolerance", "512")

	dir := writeGameDir(t)
	out := filepath.Join(t.TempDir(), "manifest.yaml.zst")

	generateOut = out
	generateVerify = true
	t.Cleanup(func() {
		generateOut = ""
		generateVerify = false
	})

	require.NoError(t, runGenerate(testCommand(), []string{dir}))

	m, err := output.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, m.Version)
	assert.Equal(t, uint64(5000+3000+1200+10), m.Size)
	assert.Len(t, m.Filenames(), 4)

	verifyDeep = true
	t.Cleanup(func() { verifyDeep = false })
	require.NoError(t, runVerify(testCommand(), []string{out, dir}))
}

func TestRunVerifyDetectsChangedFile(t *testing.T) {
	resetViper(t)
	viper.Set("chunk_size", "4KiB")
	viper.Set("tolerance", "256")

	dir := writeGameDir(t)
	out := filepath.Join(t.TempDir(), "manifest.json")

	generateOut = out
	t.Cleanup(func() { generateOut = "" })
	require.NoError(t, runGenerate(testCommand(), []string{dir}))

	// Same size, different content: layout still matches, digests do not.
	path := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	verifyDeep = false
	require.NoError(t, runVerify(testCommand(), []string{out, dir}))

	verifyDeep = true
	t.Cleanup(func() { verifyDeep = false })
	err := runVerify(testCommand(), []string{out, dir})
	assert.ErrorIs(t, err, manifest.ErrChecksum)
}

func TestRunVerifyDetectsNewFile(t *testing.T) {
	resetViper(t)

	dir := writeGameDir(t)
	out := filepath.Join(t.TempDir(), "manifest.cbor")

	generateOut = out
	t.Cleanup(func() { generateOut = "" })
	require.NoError(t, runGenerate(testCommand(), []string{dir}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.dat"), []byte("new"), 0o644))

	err := runVerify(testCommand(), []string{out, dir})
	assert.ErrorIs(t, err, manifest.ErrLayout)
}

func TestRunGenerateRecordsHistoryInFreshDir(t *testing.T) {
	resetViper(t)
	histDir := filepath.Join(t.TempDir(), "state", "history")
	viper.Set("history.enabled", true)
	viper.Set("history.path", histDir)

	dir := writeGameDir(t)
	generateOut = filepath.Join(t.TempDir(), "manifest.json")
	t.Cleanup(func() { generateOut = "" })

	require.NoError(t, runGenerate(testCommand(), []string{dir}))

	h, err := history.New(histDir)
	require.NoError(t, err)
	entries, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "directory", entries[0].Backend)
	assert.Equal(t, dir, entries[0].Source)
	assert.Equal(t, 4, entries[0].Summary.Files)
}

func TestSourceLocation(t *testing.T) {
	dir := t.TempDir()
	src, err := source.NewDirSource(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, sourceLocation(src, "ignored"))

	archive := source.NewArchiveSource(filepath.Join(dir, "game.zip"), "7z")
	assert.Equal(t, filepath.Join(dir, "game.zip"), sourceLocation(archive, "ignored"))
}

func TestNewProgressPrinterSteps(t *testing.T) {
	resetViper(t)
	p := newProgressPrinter()
	// Only checks that out-of-order and repeated values do not panic.
	for _, pct := range []float64{5, 12, 12, 55, 30, 100} {
		p(pct)
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "DROPLET_CHUNK_SIZE", envName("chunk_size"))
	assert.Equal(t, "DROPLET_SEVEN_ZIP_BINARY", envName("seven_zip.binary"))
	assert.Equal(t, "DROPLET_LOGGING_ROTATION_MAX_SIZE", envName("logging.rotation.max_size"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateString("abcdef", 2))
}
