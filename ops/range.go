package ops

import (
	"errors"
	"strconv"
	"strings"
)

var errUnsatisfiableRange = errors.New("range not satisfiable")

type byteRange struct {
	start  int64
	length int64
}

// parseRange parses a single-range "bytes=" Range header against an object
// of the given size. ok is false when the header should be ignored, which
// is the case for malformed and multi-range values.
func parseRange(spec string, size int64) (byteRange, bool, error) {
	rest, found := strings.CutPrefix(spec, "bytes=")
	if !found || strings.Contains(rest, ",") {
		return byteRange{}, false, nil
	}

	first, last, found := strings.Cut(strings.TrimSpace(rest), "-")
	if !found {
		return byteRange{}, false, nil
	}

	if first == "" {
		// Suffix range: the last n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return byteRange{}, false, nil
		}
		if n == 0 || size == 0 {
			return byteRange{}, false, errUnsatisfiableRange
		}
		n = min(n, size)
		return byteRange{start: size - n, length: n}, true, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, false, nil
	}
	if start >= size {
		return byteRange{}, false, errUnsatisfiableRange
	}

	end := size - 1
	if last != "" {
		e, err := strconv.ParseInt(last, 10, 64)
		if err != nil || e < start {
			return byteRange{}, false, nil
		}
		end = min(e, size-1)
	}

	return byteRange{start: start, length: end - start + 1}, true, nil
}
