package storageapi

import (
	"strconv"
	"strings"
)

// parseRange parses a standard "Range: bytes=start-end" request header
// against a blob of the given size, returning the inclusive byte
// range. ok is false for a missing or malformed header, never an
// error — callers fall back to a full read, matching net/http's own
// tolerance of an unusable Range header.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}

	lo, hi, found := strings.Cut(strings.TrimPrefix(header, prefix), "-")
	if !found {
		return 0, 0, false
	}

	if lo == "" {
		n, err := strconv.ParseInt(hi, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	s, err := strconv.ParseInt(lo, 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}

	if hi == "" {
		return s, size - 1, true
	}

	e, err := strconv.ParseInt(hi, 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e >= size {
		e = size - 1
	}
	return s, e, true
}

// parseContentRange parses a "Content-Range: bytes start-end/total"
// request header on a partial write, returning the offset to write
// at.
func parseContentRange(header string) (offset int64, ok bool) {
	const prefix = "bytes "
	if !strings.HasPrefix(header, prefix) {
		return 0, false
	}

	spec, _, _ := strings.Cut(strings.TrimPrefix(header, prefix), "/")
	lo, _, found := strings.Cut(spec, "-")
	if !found {
		return 0, false
	}

	s, err := strconv.ParseInt(lo, 10, 64)
	if err != nil || s < 0 {
		return 0, false
	}
	return s, true
}
