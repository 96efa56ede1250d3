package source

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultSevenZipBinary is the archive tool looked up on PATH.
const DefaultSevenZipBinary = "7z"

// Options configures backend selection.
type Options struct {
	// SevenZipBinary is the name or path of the 7z executable.
	SevenZipBinary string
}

// supportedExtensions lists the archive formats 7-Zip can unpack.
var supportedExtensions = map[string]struct{}{}

func init() {
	for _, ext := range []string{
		"7z", "bz2", "bzip2", "tbz2", "tbz", "gz", "gzip", "tgz", "tar", "wim", "swm", "esd", "xz",
		"txz", "zip", "zipx", "jar", "xpi", "odt", "ods", "docx", "xlsx", "epub", "apm", "ar", "a",
		"deb", "lib", "arj", "cab", "chm", "chw", "chi", "chq", "msi", "msp", "doc", "xls", "ppt",
		"cpio", "cramfs", "dmg", "ext", "ext2", "ext3", "ext4", "img", "fat", "hfs", "hfsx",
		"hxs", "hxr", "hxq", "hxw", "lit", "ihex", "iso", "lzh", "lha", "lzma", "mbr", "mslz",
		"mub", "nsis", "ntfs", "rar", "r00", "rpm", "ppmd", "qcow", "qcow2", "qcow2c",
		"squashfs", "udf", "scap", "uefif", "vdi", "vhd", "vmdk", "xar", "pkg", "z", "taz",
	} {
		supportedExtensions[ext] = struct{}{}
	}
}

// SupportedArchive reports whether path has an extension 7-Zip can open.
func SupportedArchive(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	_, ok := supportedExtensions[ext]
	return ok
}

// SevenZipAvailable reports whether the 7z binary can be found.
func SevenZipAvailable(binary string) bool {
	if binary == "" {
		binary = DefaultSevenZipBinary
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

// Open selects a backend for path: directories become a DirSource,
// supported archives an ArchiveSource when 7z is installed.
func Open(path string, opts Options) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	if info.IsDir() {
		return NewDirSource(path)
	}

	if !SupportedArchive(path) {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrNoBackend, filepath.Ext(path))
	}
	if !SevenZipAvailable(opts.SevenZipBinary) {
		return nil, fmt.Errorf("%w: %s is not installed", ErrNoBackend, binaryName(opts.SevenZipBinary))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}
	return NewArchiveSource(abs, opts.SevenZipBinary), nil
}

func binaryName(binary string) string {
	if binary == "" {
		return DefaultSevenZipBinary
	}
	return binary
}
