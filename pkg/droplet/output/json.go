package output

import (
	"bytes"
	"encoding/json"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// JSONFormatter writes the manifest as indented JSON. This is the
// document format consumed by the distribution server.
type JSONFormatter struct{}

// Format writes the encoded manifest to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, m *manifest.Manifest) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m)
}

// Decode parses a JSON manifest.
func (f *JSONFormatter) Decode(data []byte) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Decoder   = (*JSONFormatter)(nil)
)
