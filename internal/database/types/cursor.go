package types

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidCursor is returned when a feed cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor encodes a creation time as a feed cursor.
// The encoding is the decimal Unix millisecond timestamp.
func EncodeCursor(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DecodeCursor decodes a cursor produced by EncodeCursor.
func DecodeCursor(cursor string) (time.Time, error) {
	ms, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return time.UnixMilli(ms).UTC(), nil
}
