// Package planner packs the files of a version into chunk plans.
//
// Files are taken largest first. Sources that can read byte ranges get
// files split across chunk boundaries so that every chunk but the last
// carries exactly the target size; sources that only read whole files get
// a greedy bin packing instead.
package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Drop-OSS/droplet/pkg/droplet/source"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

// Defaults for Options.
const (
	DefaultChunkSize = 64 * units.MiB
	DefaultTolerance = 1 * units.MiB
)

// ErrInvalidOptions is returned for unusable chunk sizing.
var ErrInvalidOptions = errors.New("invalid planner options")

// Options controls chunk sizing.
type Options struct {
	// ChunkSize is the target payload of a chunk.
	ChunkSize uint64

	// Tolerance is how far a chunk may exceed ChunkSize to keep a file whole.
	Tolerance uint64
}

// DefaultOptions returns 64 MiB chunks with 1 MiB tolerance.
func DefaultOptions() Options {
	return Options{
		ChunkSize: DefaultChunkSize,
		Tolerance: DefaultTolerance,
	}
}

// Validate checks that opts can produce a plan.
func (o Options) Validate() error {
	if o.ChunkSize == 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidOptions)
	}
	if o.Tolerance >= o.ChunkSize {
		return fmt.Errorf("%w: tolerance %d must be smaller than chunk size %d", ErrInvalidOptions, o.Tolerance, o.ChunkSize)
	}
	return nil
}

// Slice is a contiguous byte range of one file.
type Slice struct {
	File   source.SourceFile
	Start  uint64
	Length uint64
}

// End returns the exclusive end offset.
func (s Slice) End() uint64 {
	return s.Start + s.Length
}

// ChunkPlan is the ordered list of slices making up one chunk.
type ChunkPlan struct {
	Slices []Slice
}

// Size returns the payload length of the chunk.
func (c ChunkPlan) Size() uint64 {
	var size uint64
	for _, s := range c.Slices {
		size += s.Length
	}
	return size
}

// Plan packs files into chunks. wholeFiles selects the strategy for
// sources that cannot read byte ranges. The files slice is not modified.
func Plan(files []source.SourceFile, wholeFiles bool, opts Options) ([]ChunkPlan, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sorted := make([]source.SourceFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Size != sorted[j].Size {
			return sorted[i].Size > sorted[j].Size
		}
		return sorted[i].Path < sorted[j].Path
	})

	p := &packer{opts: opts}
	for _, f := range sorted {
		if wholeFiles {
			p.addWhole(f)
		} else {
			p.addRange(f)
		}
	}
	p.flush()

	return p.plans, nil
}

// packer accumulates the in-progress chunk.
type packer struct {
	opts    Options
	plans   []ChunkPlan
	current []Slice
	tally   uint64
}

// limit is exclusive: a chunk holding whole files stays strictly below it.
func (p *packer) limit() uint64 {
	return p.opts.ChunkSize + p.opts.Tolerance
}

func (p *packer) append(s Slice) {
	p.current = append(p.current, s)
	p.tally += s.Length
}

// flush closes the in-progress chunk if it holds anything.
func (p *packer) flush() {
	if len(p.current) == 0 {
		return
	}
	p.plans = append(p.plans, ChunkPlan{Slices: p.current})
	p.current = nil
	p.tally = 0
}

func (p *packer) closeIfFull() {
	if p.tally >= p.opts.ChunkSize {
		p.flush()
	}
}

// addWhole places f without splitting it.
func (p *packer) addWhole(f source.SourceFile) {
	whole := Slice{File: f, Start: 0, Length: f.Size}

	if f.Size >= p.opts.ChunkSize {
		p.plans = append(p.plans, ChunkPlan{Slices: []Slice{whole}})
		return
	}

	if len(p.current) > 0 && p.tally+f.Size >= p.limit() {
		p.flush()
	}
	p.append(whole)
	p.closeIfFull()
}

// addRange places f, splitting it at chunk boundaries when it does not fit.
func (p *packer) addRange(f source.SourceFile) {
	if p.tally+f.Size < p.limit() {
		p.append(Slice{File: f, Start: 0, Length: f.Size})
		p.closeIfFull()
		return
	}

	// Fill the in-progress chunk to exactly ChunkSize.
	var offset uint64
	if p.tally < p.opts.ChunkSize {
		offset = p.opts.ChunkSize - p.tally
		p.append(Slice{File: f, Start: 0, Length: offset})
	}
	p.flush()

	remaining := f.Size - offset
	for remaining >= p.opts.ChunkSize {
		p.plans = append(p.plans, ChunkPlan{Slices: []Slice{{File: f, Start: offset, Length: p.opts.ChunkSize}}})
		offset += p.opts.ChunkSize
		remaining -= p.opts.ChunkSize
	}

	if remaining > 0 {
		p.append(Slice{File: f, Start: offset, Length: remaining})
	}
}

// Summary describes a plan for logging.
type Summary struct {
	Chunks int
	Slices int
	Bytes  uint64
}

// Stats summarizes plans.
func Stats(plans []ChunkPlan) Summary {
	var s Summary
	s.Chunks = len(plans)
	for _, p := range plans {
		s.Slices += len(p.Slices)
		s.Bytes += p.Size()
	}
	return s
}
