package output

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// cborEnc uses Core Deterministic Encoding (RFC 8949 section 4.2): the
// same manifest always encodes to the same bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("output: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("output: CBOR decoder initialization failed: " + err.Error())
	}

	Register("cbor", func() Formatter {
		return &CBORFormatter{}
	})
}

// CBORFormatter writes the manifest as deterministic CBOR. Field names
// follow the JSON document.
type CBORFormatter struct{}

// Format writes the encoded manifest to the buffer.
func (f *CBORFormatter) Format(w *bytes.Buffer, m *manifest.Manifest) error {
	data, err := cborEnc.Marshal(m)
	if err != nil {
		return err
	}
	w.Write(data)
	return nil
}

// Decode parses a CBOR manifest.
func (f *CBORFormatter) Decode(data []byte) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := cborDec.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

var (
	_ Formatter = (*CBORFormatter)(nil)
	_ Decoder   = (*CBORFormatter)(nil)
)
