// Package pagination implements opaque keyset cursors for list endpoints.
//
// A cursor names the last row the client has seen as a (timestamp, id)
// tuple. Stores page by comparing against that tuple instead of using
// offsets, so rows inserted mid-scan never shift the page boundaries.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors that did not come from Encode.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the decoded keyset position.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode packs the tuple into an opaque URL-safe token.
func Encode(createdAt time.Time, id string) string {
	return base64.URLEncoding.EncodeToString(
		[]byte(strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id))
}

// Decode unpacks a token from Encode. An empty token decodes to a nil
// cursor, meaning the first page.
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// ComputePage trims a limit+1 fetch down to the page. When the extra row
// is present there is a next page and the cursor points at the last row
// returned; extractKey pulls that row's tuple.
func ComputePage[T any](items []T, limit int, extractKey func(T) (time.Time, string)) ([]T, string, bool) {
	if len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	createdAt, id := extractKey(items[len(items)-1])
	return items, Encode(createdAt, id), true
}
