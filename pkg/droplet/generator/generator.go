// Package generator turns a source into a chunk manifest.
//
// Generate enumerates the source, plans chunks, then digests every chunk
// in its own goroutine. Reader acquisition on the source is serialized;
// reading and hashing run in parallel. A single reporter goroutine turns
// chunk completions into progress and log callbacks.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
	"github.com/Drop-OSS/droplet/pkg/droplet/planner"
	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

// Generate builds the manifest of src. On any chunk failure the first
// error is returned after every chunk has finished, and no manifest.
func Generate(ctx context.Context, src source.Source, opts Options) (*manifest.Manifest, error) {
	log := logging.Get("generator")

	newHash, err := NewHash(opts.Digest)
	if err != nil {
		return nil, err
	}
	if err := opts.planner().Validate(); err != nil {
		return nil, err
	}

	opts.log("organizing files into chunks...")

	files, err := src.Enumerate(ctx)
	if err != nil {
		if errors.Is(err, source.ErrEnumeration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", source.ErrEnumeration, err)
	}

	wholeFiles := src.RequiresWholeFiles()
	plans, err := planner.Plan(files, wholeFiles, opts.planner())
	if err != nil {
		return nil, err
	}

	stats := planner.Stats(plans)
	log.Info("planned chunks", "files", len(files), "chunks", stats.Chunks, "slices", stats.Slices, "bytes", stats.Bytes, "whole_files", wholeFiles)
	opts.log(fmt.Sprintf("organized into %d chunks, generating checksums...", len(plans)))

	events := make(chan event, eventBuffer)
	p := &pipeline{
		src:        src,
		wholeFiles: wholeFiles,
		newHash:    newHash,
		bufSize:    opts.readBuffer(),
		events:     events,
		records:    make(map[string]manifest.ChunkRecord, len(plans)),
	}

	reported := make(chan struct{})
	go func() {
		defer close(reported)
		report(events, len(plans), opts)
	}()

	runErr := p.run(ctx, plans)
	close(events)
	<-reported

	if runErr != nil {
		log.Error("manifest generation failed", "error", runErr)
		return nil, runErr
	}

	var key [16]byte
	if _, err := io.ReadFull(randReader, key[:]); err != nil {
		return nil, fmt.Errorf("%w: manifest key: %v", ErrRandomness, err)
	}

	chunks := make(map[string]manifest.ChunkRecord, len(p.records))
	for id, record := range p.records {
		chunks[id] = record
	}

	m := &manifest.Manifest{
		Version: manifest.Version,
		Chunks:  chunks,
		Size:    p.total.Load(),
		Key:     key,
	}
	log.Info("manifest generated", "chunks", len(chunks), "bytes", m.Size)
	return m, nil
}
