// Package manifest defines the chunk manifest document and checks a
// manifest against the source it was generated from.
package manifest

import (
	"sort"
)

// Version is the manifest format written by this package.
const Version = "2"

// Manifest describes every chunk of a game version.
type Manifest struct {
	Version string                 `json:"version" yaml:"version"`
	Chunks  map[string]ChunkRecord `json:"chunks" yaml:"chunks"`
	Size    uint64                 `json:"size" yaml:"size"`
	Key     [16]byte               `json:"key" yaml:"key"`
}

// ChunkRecord is one content-addressed chunk.
type ChunkRecord struct {
	Files    []FileEntry `json:"files" yaml:"files"`
	Checksum string      `json:"checksum" yaml:"checksum"`
	IV       [16]byte    `json:"iv" yaml:"iv"`
}

// FileEntry places a byte range of a file inside a chunk.
type FileEntry struct {
	Filename    string `json:"filename" yaml:"filename"`
	Start       uint64 `json:"start" yaml:"start"`
	Length      uint64 `json:"length" yaml:"length"`
	Permissions uint32 `json:"permissions" yaml:"permissions"`
}

// Length returns the payload length of the chunk.
func (c ChunkRecord) Length() uint64 {
	var n uint64
	for _, f := range c.Files {
		n += f.Length
	}
	return n
}

// ChunkIDs returns the chunk ids in sorted order.
func (m *Manifest) ChunkIDs() []string {
	ids := make([]string, 0, len(m.Chunks))
	for id := range m.Chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filenames returns the distinct files referenced by the manifest, sorted.
func (m *Manifest) Filenames() []string {
	seen := make(map[string]struct{})
	for _, c := range m.Chunks {
		for _, f := range c.Files {
			seen[f.Filename] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PayloadSize sums the chunk payloads. For a well-formed manifest it
// equals Size.
func (m *Manifest) PayloadSize() uint64 {
	var n uint64
	for _, c := range m.Chunks {
		n += c.Length()
	}
	return n
}

// Summary is a short description of a manifest.
type Summary struct {
	Chunks int    `json:"chunks" yaml:"chunks"`
	Files  int    `json:"files" yaml:"files"`
	Bytes  uint64 `json:"bytes" yaml:"bytes"`
}

// Summarize returns counts for display and history.
func (m *Manifest) Summarize() Summary {
	return Summary{
		Chunks: len(m.Chunks),
		Files:  len(m.Filenames()),
		Bytes:  m.Size,
	}
}
