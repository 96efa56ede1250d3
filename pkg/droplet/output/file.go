package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// Encode formats m and compresses the result.
func Encode(m *manifest.Manifest, format string, c Compression) ([]byte, error) {
	formatter, err := Get(format)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, m); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", format, err)
	}
	return Compress(buf.Bytes(), c)
}

// WriteFile encodes m to path atomically.
func WriteFile(path string, m *manifest.Manifest, format string, c Compression) error {
	data, err := Encode(m, format, c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// ReadFile loads a manifest written by WriteFile. Compression is detected
// from the frame header; the format from the file extension, or from the
// content when the extension is unknown.
func ReadFile(path string) (*manifest.Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw, FormatFromPath(path))
}

// Decode decompresses and parses data. An empty format is sniffed.
func Decode(raw []byte, format string) (*manifest.Manifest, error) {
	data, err := Decompress(raw, DetectCompression(raw))
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = sniffFormat(data)
	}

	formatter, err := Get(format)
	if err != nil {
		return nil, err
	}
	decoder, ok := formatter.(Decoder)
	if !ok {
		return nil, fmt.Errorf("format %s cannot be read back", format)
	}

	m, err := decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s manifest: %w", format, err)
	}
	return m, nil
}

// FormatFromPath infers the format from the extension, ignoring a
// compression suffix. It returns "" when unknown.
func FormatFromPath(path string) string {
	if CompressionFromPath(path) != CompressionNone {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".cbor":
		return "cbor"
	default:
		return ""
	}
}

// Extension returns the file suffix for a format.
func Extension(format string) string {
	switch format {
	case "yaml":
		return ".yaml"
	case "cbor":
		return ".cbor"
	case "pretty":
		return ".txt"
	default:
		return ".json"
	}
}

func sniffFormat(data []byte) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case len(trimmed) == 0:
		return "json"
	case trimmed[0] == '{':
		return "json"
	case trimmed[0]>>5 == 5:
		// CBOR major type 5 is a map.
		return "cbor"
	default:
		return "yaml"
	}
}
