package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

// DirSource reads a version from a directory tree.
type DirSource struct {
	root string
}

// NewDirSource returns a DirSource rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoBackend, dir, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNoBackend, root)
	}

	return &DirSource{root: root}, nil
}

// Root returns the absolute root directory.
func (d *DirSource) Root() string {
	return d.root
}

// RequiresWholeFiles is false: files are seekable.
func (d *DirSource) RequiresWholeFiles() bool {
	return false
}

// Enumerate walks the tree and returns every regular file sorted by path.
// Symbolic links are neither followed nor reported.
func (d *DirSource) Enumerate(ctx context.Context) ([]SourceFile, error) {
	var (
		mu    sync.Mutex
		files []SourceFile
	)

	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		file, err := d.describe(path)
		if err != nil {
			return err
		}

		mu.Lock()
		files = append(files, file)
		mu.Unlock()
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, fmt.Errorf("%w: walking %s: %v", ErrEnumeration, d.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	logging.Get("source").Debug("enumerated directory", "root", d.root, "files", len(files))
	return files, nil
}

// Peek stats a single file without walking the tree.
func (d *DirSource) Peek(ctx context.Context, path string) (SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return SourceFile{}, err
	}

	full, ok := d.resolve(path)
	if !ok {
		return SourceFile{}, fmt.Errorf("%w: %s is outside %s", ErrNotFound, path, d.root)
	}
	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return SourceFile{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return SourceFile{}, fmt.Errorf("%w: %v", ErrEnumeration, err)
	}
	if !info.Mode().IsRegular() {
		return SourceFile{}, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, path)
	}
	return d.describe(full)
}

// OpenRange opens the file, seeks to start and limits the reader to end.
func (d *DirSource) OpenRange(ctx context.Context, file SourceFile, start, end uint64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if end != 0 && end < start {
		return nil, fmt.Errorf("%w: invalid range [%d, %d) for %s", ErrRead, start, end, file.Path)
	}

	full, ok := d.resolve(file.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrRead, file.Path, d.root)
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	if start > 0 {
		if _, err := f.Seek(int64(start), io.SeekStart); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: seeking %s: %v", ErrRead, file.Path, err)
		}
	}

	if end == 0 {
		return f, nil
	}
	return &limitedFile{Reader: io.LimitReader(f, int64(end-start)), file: f}, nil
}

func (d *DirSource) describe(path string) (SourceFile, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return SourceFile{}, err
	}

	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return SourceFile{}, err
	}

	return SourceFile{
		Path:       filepath.ToSlash(rel),
		Permission: permissionBits(path, info),
		Size:       uint64(info.Size()),
	}, nil
}

// resolve joins a slash-separated relative path onto the root. Absolute
// paths and paths that climb out of the root are rejected.
func (d *DirSource) resolve(rel string) (string, bool) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", false
	}
	return filepath.Join(d.root, local), true
}

// limitedFile closes the underlying file of a limited reader.
type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error {
	return l.file.Close()
}
