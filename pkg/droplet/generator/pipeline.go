package generator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
	"github.com/Drop-OSS/droplet/pkg/droplet/planner"
	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

// ErrRandomness is returned when the system random source fails.
var ErrRandomness = errors.New("random source failed")

// randReader supplies chunk ids, IVs and manifest keys.
var randReader io.Reader = rand.Reader

// pipeline digests chunk plans concurrently.
type pipeline struct {
	src        source.Source
	wholeFiles bool
	newHash    func() hash.Hash
	bufSize    int
	events     chan<- event

	// srcMu serializes reader acquisition; reads happen outside it.
	srcMu sync.Mutex

	total atomic.Uint64

	mu      sync.Mutex
	records map[string]manifest.ChunkRecord
}

// run processes every plan in its own goroutine and returns the first
// error once all of them finish.
func (p *pipeline) run(ctx context.Context, plans []planner.ChunkPlan) error {
	var g errgroup.Group
	for i, plan := range plans {
		g.Go(func() error {
			err := p.process(ctx, i, plan)
			if err != nil {
				p.events <- event{index: i, err: err}
			}
			return err
		})
	}
	return g.Wait()
}

func (p *pipeline) process(ctx context.Context, index int, plan planner.ChunkPlan) error {
	id, err := uuid.NewRandomFromReader(randReader)
	if err != nil {
		return fmt.Errorf("%w: chunk id: %v", ErrRandomness, err)
	}
	var iv [16]byte
	if _, err := io.ReadFull(randReader, iv[:]); err != nil {
		return fmt.Errorf("%w: chunk iv: %v", ErrRandomness, err)
	}

	h := p.newHash()
	buf := make([]byte, p.bufSize)
	entries := make([]manifest.FileEntry, 0, len(plan.Slices))

	for _, s := range plan.Slices {
		if err := p.digestSlice(ctx, s, h, buf); err != nil {
			return err
		}
		entries = append(entries, manifest.FileEntry{
			Filename:    s.File.Path,
			Start:       s.Start,
			Length:      s.Length,
			Permissions: s.File.Permission,
		})
	}

	checksum := hex.EncodeToString(h.Sum(nil))
	size := plan.Size()

	p.events <- event{
		index:   index,
		message: fmt.Sprintf("created chunk of size %s from %d files (index %d)", humanize.IBytes(size), len(entries), index),
	}
	logging.Get("generator").Debug("chunk digested", "index", index, "id", id.String(), "bytes", size, "files", len(entries))

	p.total.Add(size)

	p.mu.Lock()
	p.records[id.String()] = manifest.ChunkRecord{
		Files:    entries,
		Checksum: checksum,
		IV:       iv,
	}
	p.mu.Unlock()

	return nil
}

// digestSlice streams one slice into h.
func (p *pipeline) digestSlice(ctx context.Context, s planner.Slice, h hash.Hash, buf []byte) error {
	start, end := s.Start, s.End()
	if p.wholeFiles {
		start, end = 0, 0
	}

	p.srcMu.Lock()
	r, err := p.src.OpenRange(ctx, s.File, start, end)
	p.srcMu.Unlock()
	if err != nil {
		if errors.Is(err, source.ErrRead) {
			return err
		}
		return fmt.Errorf("%w: opening %s: %v", source.ErrRead, s.File.Path, err)
	}

	n, err := io.CopyBuffer(h, r, buf)
	closeErr := r.Close()
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", source.ErrRead, s.File.Path, err)
	}
	if closeErr != nil {
		if errors.Is(closeErr, source.ErrRead) {
			return closeErr
		}
		return fmt.Errorf("%w: closing %s: %v", source.ErrRead, s.File.Path, closeErr)
	}
	if uint64(n) != s.Length {
		return fmt.Errorf("%w: %s: read %d bytes, expected %d", source.ErrRead, s.File.Path, n, s.Length)
	}
	return nil
}
