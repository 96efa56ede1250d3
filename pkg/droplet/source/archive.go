package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

// ArchivePermission is reported for every archive entry: owner rwx, others r.
const ArchivePermission uint32 = 0o744

// Column layout of a `7z l -ba` line:
//
//	2023-01-01 12:00:00 ....A         1234          567  dir/file name.txt
const (
	attrColumn  = 20
	sizeColumn  = 26
	sizeEnd     = 38
	nameColumn  = 53
	attrColumnW = 5
)

// ArchiveSource reads a version from an archive through the 7z binary.
type ArchiveSource struct {
	path   string
	binary string
}

// NewArchiveSource returns a source reading archivePath with the given 7z
// binary. An empty binary defaults to "7z".
func NewArchiveSource(archivePath, binary string) *ArchiveSource {
	if binary == "" {
		binary = DefaultSevenZipBinary
	}
	return &ArchiveSource{path: archivePath, binary: binary}
}

// Path returns the archive path.
func (a *ArchiveSource) Path() string {
	return a.path
}

// RequiresWholeFiles is true: 7z streams entries from the start only.
func (a *ArchiveSource) RequiresWholeFiles() bool {
	return true
}

// Enumerate lists the archive with `7z l -ba`.
func (a *ArchiveSource) Enumerate(ctx context.Context) ([]SourceFile, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.binary, "l", "-ba", a.path)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v: %s", ErrEnumeration, a.path, err, strings.TrimSpace(stderr.String()))
	}

	files, err := parseListing(out)
	if err != nil {
		return nil, err
	}

	logging.Get("source").Debug("enumerated archive", "archive", a.path, "files", len(files))
	return files, nil
}

// OpenRange extracts one entry to stdout with `7z e -so`. Only whole-file
// reads are supported.
func (a *ArchiveSource) OpenRange(ctx context.Context, file SourceFile, start, end uint64) (io.ReadCloser, error) {
	if start != 0 || end != 0 {
		return nil, fmt.Errorf("%w: archive entries are read whole, got range [%d, %d) for %s", ErrRead, start, end, file.Path)
	}

	cmd := exec.CommandContext(ctx, a.binary, "e", "-so", a.path, file.Path)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrRead, a.binary, err)
	}

	return &processReader{
		ReadCloser: stdout,
		cmd:        cmd,
		stderr:     stderr,
		name:       file.Path,
	}, nil
}

// processReader streams an extraction process's stdout. Close reaps the
// process and reports a failed extraction.
type processReader struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	name   string
	closed bool
}

func (p *processReader) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	_ = p.ReadCloser.Close()
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: extracting %s: %v: %s", ErrRead, p.name, err, strings.TrimSpace(p.stderr.String()))
	}
	return nil
}

// parseListing parses the output of `7z l -ba`, skipping directories.
func parseListing(out []byte) ([]SourceFile, error) {
	var files []SourceFile

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		attrs, size, name, err := parseListingLine(line)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(attrs, "D") {
			continue
		}

		files = append(files, SourceFile{
			Path:       name,
			Permission: ArchivePermission,
			Size:       size,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading listing: %v", ErrEnumeration, err)
	}
	return files, nil
}

// parseListingLine reads attrs, size and name from one listing line. Lines
// in 7z's fixed-column layout are cut by column so names keep their spaces
// even when the date or compressed-size columns are blank; anything else
// falls back to whitespace fields.
func parseListingLine(line string) (attrs string, size uint64, name string, err error) {
	if len(line) > nameColumn && line[attrColumn-1] == ' ' && line[sizeColumn-1] == ' ' && line[nameColumn-1] == ' ' {
		attrs = strings.TrimSpace(line[attrColumn : attrColumn+attrColumnW])
		sizeField := strings.TrimSpace(line[sizeColumn:sizeEnd])
		name = line[nameColumn:]

		if attrs != "" && name != "" {
			size, err = parseEntrySize(sizeField, line)
			return attrs, size, name, err
		}
	}

	fields := strings.Fields(line)
	if len(fields) < 5 {
		return "", 0, "", fmt.Errorf("%w: malformed listing line %q", ErrEnumeration, line)
	}

	attrs = fields[2]
	size, err = parseEntrySize(fields[3], line)
	if err != nil {
		return "", 0, "", err
	}
	if len(fields) == 5 {
		return attrs, size, fields[4], nil
	}
	return attrs, size, strings.Join(fields[5:], " "), nil
}

func parseEntrySize(field, line string) (uint64, error) {
	if field == "" {
		return 0, nil
	}
	size, err := strconv.ParseUint(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad size in listing line %q", ErrEnumeration, line)
	}
	return size, nil
}
