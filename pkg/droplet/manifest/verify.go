package manifest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

var (
	// ErrLayout is returned when chunk entries do not exactly partition
	// the source files.
	ErrLayout = errors.New("manifest layout mismatch")

	// ErrChecksum is returned when a chunk digest does not match its data.
	ErrChecksum = errors.New("chunk checksum mismatch")
)

type span struct {
	start, end uint64
	chunk      string
}

// VerifyLayout checks that every entry lies within its file, that the
// entries of each file cover it exactly once, and that the declared size
// matches the payload. All problems are reported joined.
func VerifyLayout(m *Manifest, files []source.SourceFile) error {
	var errs []error

	sizes := make(map[string]uint64, len(files))
	for _, f := range files {
		sizes[f.Path] = f.Size
	}

	spans := make(map[string][]span)
	for _, id := range m.ChunkIDs() {
		for _, e := range m.Chunks[id].Files {
			size, ok := sizes[e.Filename]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: chunk %s references unknown file %s", ErrLayout, id, e.Filename))
				continue
			}
			end := e.Start + e.Length
			if end < e.Start || end > size {
				errs = append(errs, fmt.Errorf("%w: chunk %s entry %s [%d, %d) exceeds size %d", ErrLayout, id, e.Filename, e.Start, end, size))
				continue
			}
			spans[e.Filename] = append(spans[e.Filename], span{start: e.Start, end: end, chunk: id})
		}
	}

	for _, f := range files {
		errs = append(errs, checkCoverage(f, spans[f.Path])...)
	}

	if payload := m.PayloadSize(); payload != m.Size {
		errs = append(errs, fmt.Errorf("%w: declared size %d, chunks hold %d", ErrLayout, m.Size, payload))
	}

	return errors.Join(errs...)
}

func checkCoverage(f source.SourceFile, spans []span) []error {
	if len(spans) == 0 {
		return []error{fmt.Errorf("%w: %s is missing from the manifest", ErrLayout, f.Path)}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})

	var errs []error
	var pos uint64
	for _, s := range spans {
		switch {
		case s.start > pos:
			errs = append(errs, fmt.Errorf("%w: %s has a gap at [%d, %d)", ErrLayout, f.Path, pos, s.start))
		case s.start < pos:
			errs = append(errs, fmt.Errorf("%w: %s overlaps at [%d, %d) in chunk %s", ErrLayout, f.Path, s.start, pos, s.chunk))
		}
		if s.end > pos {
			pos = s.end
		}
	}
	if pos < f.Size {
		errs = append(errs, fmt.Errorf("%w: %s has a gap at [%d, %d)", ErrLayout, f.Path, pos, f.Size))
	}
	return errs
}

// VerifyChecksums re-reads every chunk from src and compares digests
// computed with newHash. Whole-file sources are opened with (0, 0).
func VerifyChecksums(ctx context.Context, src source.Source, m *Manifest, newHash func() hash.Hash) error {
	var errs []error
	whole := src.RequiresWholeFiles()

	for _, id := range m.ChunkIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := m.Chunks[id]
		sum, err := digestChunk(ctx, src, chunk, whole, newHash())
		if err != nil {
			return fmt.Errorf("chunk %s: %w", id, err)
		}
		if sum != chunk.Checksum {
			errs = append(errs, fmt.Errorf("%w: chunk %s: expected %s, got %s", ErrChecksum, id, chunk.Checksum, sum))
		}
	}

	return errors.Join(errs...)
}

func digestChunk(ctx context.Context, src source.Source, chunk ChunkRecord, whole bool, h hash.Hash) (string, error) {
	for _, e := range chunk.Files {
		file := source.SourceFile{Path: e.Filename, Permission: e.Permissions, Size: e.Start + e.Length}

		start, end := e.Start, e.Start+e.Length
		if whole {
			start, end = 0, 0
		}

		r, err := src.OpenRange(ctx, file, start, end)
		if err != nil {
			return "", err
		}
		n, err := io.Copy(h, r)
		closeErr := r.Close()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", source.ErrRead, e.Filename, err)
		}
		if closeErr != nil {
			return "", closeErr
		}
		if uint64(n) != e.Length {
			return "", fmt.Errorf("%w: %s: read %d bytes, expected %d", source.ErrRead, e.Filename, n, e.Length)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
