// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

// OpenCall records one OpenRange invocation.
type OpenCall struct {
	Path       string
	Start, End uint64
}

// Source serves files from memory.
type Source struct {
	// WholeFiles is returned from RequiresWholeFiles.
	WholeFiles bool

	// Fail maps a path to an error returned when it is opened.
	Fail map[string]error

	// Short maps a path to a byte count after which reads stop early.
	Short map[string]int

	// OpenDelay is slept inside OpenRange to widen race windows.
	OpenDelay time.Duration

	// EnumerateErr is returned from Enumerate when set.
	EnumerateErr error

	mu      sync.Mutex
	files   map[string][]byte
	perms   map[string]uint32
	calls   []OpenCall
	active  atomic.Int32
	maxSeen atomic.Int32
}

// New returns a source holding files.
func New(files map[string][]byte) *Source {
	s := &Source{
		files: make(map[string][]byte, len(files)),
		perms: make(map[string]uint32, len(files)),
	}
	for path, data := range files {
		s.files[path] = data
		s.perms[path] = 0o644
	}
	return s
}

// SetPermission overrides the permission bits reported for path.
func (s *Source) SetPermission(path string, perm uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[path] = perm
}

// Bytes returns the content of path.
func (s *Source) Bytes(path string) []byte {
	return s.files[path]
}

// Replace changes the content of path.
func (s *Source) Replace(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

// Enumerate returns the files sorted by path.
func (s *Source) Enumerate(context.Context) ([]source.SourceFile, error) {
	if s.EnumerateErr != nil {
		return nil, s.EnumerateErr
	}

	files := make([]source.SourceFile, 0, len(s.files))
	for path, data := range s.files {
		files = append(files, source.SourceFile{Path: path, Permission: s.perms[path], Size: uint64(len(data))})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// RequiresWholeFiles reports WholeFiles.
func (s *Source) RequiresWholeFiles() bool {
	return s.WholeFiles
}

// OpenRange returns a reader over the stored bytes.
func (s *Source) OpenRange(ctx context.Context, file source.SourceFile, start, end uint64) (io.ReadCloser, error) {
	n := s.active.Add(1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	defer s.active.Add(-1)

	if s.OpenDelay > 0 {
		time.Sleep(s.OpenDelay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, OpenCall{Path: file.Path, Start: start, End: end})
	data, ok := s.files[file.Path]
	s.mu.Unlock()

	if err := s.Fail[file.Path]; err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrRead, file.Path)
	}
	if s.WholeFiles && (start != 0 || end != 0) {
		return nil, errors.New("whole-file source opened with a range")
	}

	if end == 0 {
		end = uint64(len(data))
	}
	if start > end || end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: range [%d, %d) outside %s", source.ErrRead, start, end, file.Path)
	}

	chunk := data[start:end]
	if limit, ok := s.Short[file.Path]; ok && limit < len(chunk) {
		chunk = chunk[:limit]
	}
	return io.NopCloser(bytes.NewReader(chunk)), nil
}

// Calls returns the recorded OpenRange calls.
func (s *Source) Calls() []OpenCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OpenCall(nil), s.calls...)
}

// MaxConcurrentOpens returns the highest number of overlapping OpenRange
// calls observed.
func (s *Source) MaxConcurrentOpens() int {
	return int(s.maxSeen.Load())
}
