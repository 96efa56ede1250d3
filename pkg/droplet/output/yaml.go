package output

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// YAMLFormatter writes the manifest as YAML with the same field names as
// the JSON document.
type YAMLFormatter struct{}

// Format writes the encoded manifest to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, m *manifest.Manifest) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(m); err != nil {
		return err
	}
	return encoder.Close()
}

// Decode parses a YAML manifest.
func (f *YAMLFormatter) Decode(data []byte) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var (
	_ Formatter = (*YAMLFormatter)(nil)
	_ Decoder   = (*YAMLFormatter)(nil)
)
