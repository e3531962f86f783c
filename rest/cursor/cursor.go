package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Cursor is the position of a page in a listing. It travels as opaque base64
// encoded JSON in the c query parameter.
type Cursor struct {
	Start    int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

var ErrInvalidCursor = errors.New("invalid cursor")

// DecodeFromRequest reads the cursor from the c query parameter, p overrides
// the page size. Invalid values fall back to the first page.
func DecodeFromRequest(r *http.Request) Cursor {
	cursor := Cursor{PageSize: DefaultPageSize}
	if err := DecodeFromString(r.URL.Query().Get("c"), &cursor); err != nil {
		cursor = Cursor{PageSize: DefaultPageSize}
	}
	if pageSize, err := strconv.Atoi(r.URL.Query().Get("p")); err == nil && pageSize > 0 {
		cursor.PageSize = pageSize
	}
	if cursor.PageSize > MaxPageSize {
		cursor.PageSize = MaxPageSize
	}
	return cursor
}

// DecodeFromString decodes into cursor, which is left untouched for an
// empty string. A zero page size keeps the page size of cursor.
func DecodeFromString(encoded string, cursor *Cursor) error {
	if encoded == "" {
		return nil
	}
	asJSON, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ErrInvalidCursor
	}
	var decoded Cursor
	if err := json.Unmarshal(asJSON, &decoded); err != nil {
		return ErrInvalidCursor
	}
	if decoded.Start < 0 || decoded.PageSize < 0 {
		return ErrInvalidCursor
	}
	if decoded.PageSize == 0 {
		decoded.PageSize = cursor.PageSize
	}
	*cursor = decoded
	return nil
}

func (c Cursor) Encode() string {
	asJSON, err := json.Marshal(&c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(asJSON)
}

func (c Cursor) Previous() (Cursor, bool) {
	if c.Start > 0 {
		start := c.Start - c.PageSize
		if start < 0 {
			start = 0
		}
		return Cursor{Start: start, PageSize: c.PageSize}, true
	}
	return Cursor{}, false
}

func (c Cursor) Next() (Cursor, bool) {
	return Cursor{Start: c.Start + c.PageSize, PageSize: c.PageSize}, true
}
