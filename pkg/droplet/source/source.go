// Package source abstracts the places a game version can be read from.
//
// A Source enumerates the files of a version and hands out readers over
// byte ranges of those files. Two backends exist: DirSource for plain
// directory trees and ArchiveSource for anything the external 7z tool can
// open.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors. Backends wrap them with context using fmt.Errorf("%w: ...").
var (
	// ErrNoBackend is returned when no backend can serve a path.
	ErrNoBackend = errors.New("no backend for path")

	// ErrEnumeration is returned when listing a source fails.
	ErrEnumeration = errors.New("enumeration failed")

	// ErrRead is returned when opening or reading file content fails.
	ErrRead = errors.New("read failed")

	// ErrNotFound is returned by Peek for unknown paths.
	ErrNotFound = errors.New("file not found")
)

// SourceFile describes one file of a version.
type SourceFile struct {
	// Path is relative to the source root and slash separated.
	Path string

	// Permission holds POSIX permission bits, 0 when unavailable.
	Permission uint32

	// Size in bytes.
	Size uint64
}

// Source is a readable game version.
//
// Implementations are not required to be safe for concurrent use; callers
// that share a Source across goroutines serialize access to it.
type Source interface {
	// Enumerate lists every regular file of the version.
	Enumerate(ctx context.Context) ([]SourceFile, error)

	// RequiresWholeFiles reports whether OpenRange only supports reading
	// whole files. Such sources are opened with start == end == 0.
	RequiresWholeFiles() bool

	// OpenRange returns a reader over [start, end) of file. An end of 0
	// reads to the end of the file.
	OpenRange(ctx context.Context, file SourceFile, start, end uint64) (io.ReadCloser, error)
}

// Peeker is implemented by sources that can look up a single file without
// a full enumeration.
type Peeker interface {
	Peek(ctx context.Context, path string) (SourceFile, error)
}

// Peek returns the metadata of the file at the given relative path.
func Peek(ctx context.Context, src Source, path string) (SourceFile, error) {
	if p, ok := src.(Peeker); ok {
		return p.Peek(ctx, path)
	}

	files, err := src.Enumerate(ctx)
	if err != nil {
		return SourceFile{}, err
	}
	for _, f := range files {
		if f.Path == path {
			return f, nil
		}
	}
	return SourceFile{}, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// TotalSize sums the sizes of files.
func TotalSize(files []SourceFile) uint64 {
	var total uint64
	for _, f := range files {
		total += f.Size
	}
	return total
}
