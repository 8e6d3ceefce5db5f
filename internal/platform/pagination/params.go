// Package pagination provides cursor tokens and page size bounds for the
// keyset-paginated list endpoints.
package pagination

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when a request does not ask for a size.
	DefaultPageSize = 20
	// MaxPageSize caps what a single request may ask for.
	MaxPageSize = 100
)

var (
	// ErrInvalidPageToken reports a malformed or truncated page token.
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
	// ErrInvalidPageSize reports a pageSize value that is not a positive integer.
	ErrInvalidPageSize = errors.New("pagination: invalid pageSize")
)

// Cursor marks the position a page resumes from. The field values mirror
// the ordered columns of the underlying query.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// Normalize clamps size into the allowed range, substituting the default
// for zero and negative values.
func Normalize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// ParsePageSize parses a raw query value into a bounded page size. An empty
// value yields the default.
func ParsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPageSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
	}
	return Normalize(size), nil
}
