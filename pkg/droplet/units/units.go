// Package units parses and formats byte sizes for droplet configuration,
// flags, and log output.
package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Binary (IEC) size units.
const (
	KiB uint64 = 1024
	MiB uint64 = 1024 * KiB
	GiB uint64 = 1024 * MiB
	TiB uint64 = 1024 * GiB
)

// sizePattern matches "64MiB", "1M", "512", "1.5 GB" and similar.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that a size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ParseSize parses a human-readable size into bytes. Every suffix is read
// as a binary unit, so "64M", "64MB" and "64MiB" are all 64*2^20 bytes.
// Fractional values are truncated to the nearest byte.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative size %q", ErrInvalidSize, s)
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier uint64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	// float64(math.MaxUint64) rounds up to 2^64.
	bytes := value * float64(multiplier)
	if bytes >= float64(math.MaxUint64) {
		return 0, fmt.Errorf("%w: %q overflows 64 bits", ErrInvalidSize, s)
	}
	return uint64(bytes), nil
}

// FormatSize renders bytes with IEC units, e.g. "64 MiB".
func FormatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}
