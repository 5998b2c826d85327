// Package units converts between byte counts and human-readable size strings
package units

import (
	"errors"
	"fmt"
	"strings"

	dockerunits "github.com/docker/go-units"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// ErrInvalidSize is returned when a memory size string cannot be parsed
var ErrInvalidSize = errors.New("failed to parse memory size")

// ParseMemory parses a size string such as "16GB", "1000MB" or "8GiB" into bytes.
// SI suffixes (KB, MB, GB, ...) are decimal, IEC suffixes (KiB, MiB, GiB, ...) are
// binary and a bare number is a byte count.
func ParseMemory(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidSize)
	}

	var (
		n   int64
		err error
	)
	if isBinarySuffix(trimmed) {
		n, err = dockerunits.RAMInBytes(trimmed)
	} else {
		n, err = dockerunits.FromHumanSize(trimmed)
	}
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidSize, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %q: negative size", ErrInvalidSize, s)
	}
	return uint64(n), nil
}

// isBinarySuffix reports whether the unit suffix is an IEC one (Ki, Mi, GiB, ...)
func isBinarySuffix(s string) bool {
	lower := strings.ToLower(s)
	lower = strings.TrimSuffix(lower, "b")
	return strings.HasSuffix(lower, "i")
}

// FormatBytes renders a byte count with 1024-based units and two decimals
func FormatBytes(bytes uint64) string {
	switch {
	case bytes >= gib:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gib)
	case bytes >= mib:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mib)
	case bytes >= kib:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kib)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
