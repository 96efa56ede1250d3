package generator

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// Supported digest algorithms.
const (
	DigestSHA256 = "sha256"
	DigestBLAKE3 = "blake3"
)

// ErrUnknownDigest is returned for an unsupported digest name.
var ErrUnknownDigest = errors.New("unknown digest")

// NewHash returns a constructor for the named digest. An empty name
// selects sha256.
func NewHash(name string) (func() hash.Hash, error) {
	switch name {
	case "", DigestSHA256:
		return sha256.New, nil
	case DigestBLAKE3:
		return func() hash.Hash { return blake3.New() }, nil
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownDigest, name, DigestSHA256, DigestBLAKE3)
	}
}
