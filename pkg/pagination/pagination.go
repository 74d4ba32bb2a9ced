// Package pagination implements keyset pages over (created_at, id), newest
// first, with opaque cursors.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// cursorLen is 8 bytes of unix nanoseconds followed by the 16 byte id.
const cursorLen = 8 + 16

var errBadCursor = errors.New("malformed cursor")

// Params is a page request. A blank Cursor asks for the first page.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the last row already returned.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting non-positive
// values to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Page can tell whether another
// page follows.
func LimitWithBuffer(limit int) int { return NormalizeLimit(limit) + 1 }

func EncodeCursor(c Cursor) string {
	buf := make([]byte, cursorLen)
	binary.BigEndian.PutUint64(buf, uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor returns (nil, nil) for a blank value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != cursorLen {
		return nil, errBadCursor
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil {
		return nil, errBadCursor
	}
	at := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8]))).UTC()
	return &Cursor{CreatedAt: at, ID: id}, nil
}

// Keyset scopes query to the rows after params.Cursor, newest first, and
// limits it to one row past the page.
func Keyset(query *gorm.DB, params Params) (*gorm.DB, error) {
	after, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if after != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	return query.Order("created_at DESC, id DESC").Limit(LimitWithBuffer(params.Limit)), nil
}

// Page cuts the buffered row Keyset fetched. next is empty on the last page.
func Page[T any](rows []T, limit int, key func(T) Cursor) (page []T, next string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	return rows[:limit], EncodeCursor(key(rows[limit-1]))
}
