package generator

import (
	"github.com/Drop-OSS/droplet/pkg/droplet/planner"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

// DefaultReadBuffer bounds each read from a source.
const DefaultReadBuffer = 1 * units.MiB

// eventBuffer is the capacity of the pipeline to reporter channel.
const eventBuffer = 16

// Options configures Generate.
type Options struct {
	// ChunkSize is the target chunk payload.
	ChunkSize uint64

	// Tolerance is how far a chunk may exceed ChunkSize to keep a file whole.
	Tolerance uint64

	// ReadBuffer is the size of the buffer used for each read. Zero means
	// DefaultReadBuffer.
	ReadBuffer int

	// Digest names the chunk digest algorithm. Empty means DigestSHA256.
	Digest string

	// OnProgress receives the completed percentage in [0, 100].
	OnProgress func(float64)

	// OnLog receives human-readable progress lines.
	OnLog func(string)
}

// DefaultOptions returns 64 MiB chunks, 1 MiB tolerance and sha256.
func DefaultOptions() Options {
	p := planner.DefaultOptions()
	return Options{
		ChunkSize:  p.ChunkSize,
		Tolerance:  p.Tolerance,
		ReadBuffer: int(DefaultReadBuffer),
		Digest:     DigestSHA256,
	}
}

func (o Options) planner() planner.Options {
	return planner.Options{ChunkSize: o.ChunkSize, Tolerance: o.Tolerance}
}

func (o Options) readBuffer() int {
	if o.ReadBuffer <= 0 {
		return int(DefaultReadBuffer)
	}
	return o.ReadBuffer
}

func (o Options) log(msg string) {
	if o.OnLog != nil {
		o.OnLog(msg)
	}
}

func (o Options) progress(pct float64) {
	if o.OnProgress != nil {
		o.OnProgress(pct)
	}
}
