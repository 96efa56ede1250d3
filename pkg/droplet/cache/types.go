// Package cache persists archive listings in a Badger database so that
// repeated manifest generation over an unchanged archive does not pay for
// another slow external listing.
package cache

import (
	"bytes"
	"encoding/gob"
)

// Version is bumped whenever the encoded Listing layout changes. Entries
// written under another version are treated as misses.
const Version = 1

// keyPrefix namespaces listing keys inside the database.
const keyPrefix = "listing\x00"

// File is one cached enumeration result.
type File struct {
	Path       string
	Permission uint32
	Size       uint64
}

// Listing is the cached enumeration of one archive, stamped with the
// archive's size and modification time at listing time.
type Listing struct {
	Version int
	Size    int64
	ModTime int64 // UnixNano
	Files   []File
}

// Encode serializes the listing using gob.
func (l *Listing) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a gob-encoded listing.
func (l *Listing) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(l)
}

// MakeKey returns the database key for an archive path.
func MakeKey(archivePath string) []byte {
	return []byte(keyPrefix + archivePath)
}
