package pagination

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Storefront lists (products, orders, balance entries) page newest first over
// the (created_at, id) key. Cursors travel in query strings, so they use the
// URL-safe alphabet without padding.

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

var cursorEncoding = base64.RawURLEncoding

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the key of the last row on the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return cursorEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes a cursor. An empty value means the first page. A
// malformed one is a validation error the client can see.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := cursorEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor(err)
	}
	rawTime, rawID, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, invalidCursor(nil)
	}
	t, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, invalidCursor(err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, invalidCursor(err)
	}
	return &Cursor{CreatedAt: t, ID: id}, nil
}

// Validate rejects a malformed cursor before any query runs.
func Validate(params Params) error {
	_, err := ParseCursor(params.Cursor)
	return err
}

// Newest scopes qb to the page after params.Cursor, newest first, fetching
// one extra row so Trim can tell whether another page exists.
func Newest(qb *gorm.DB, params Params) (*gorm.DB, error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return qb.Order("created_at DESC").Order("id DESC").Limit(LimitWithBuffer(params.Limit)), nil
}

// Trim drops the look-ahead row fetched by Newest and returns the cursor of
// the next page, or "" on the last one.
func Trim[T any](rows []T, params Params, key func(T) Cursor) ([]T, string) {
	size := NormalizeLimit(params.Limit)
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, EncodeCursor(key(rows[size-1]))
}

func invalidCursor(cause error) error {
	msg := "invalid cursor"
	details := map[string]any{"cursor": "must be a next_cursor value returned by a previous page"}
	if cause == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, msg).WithDetails(details)
}
