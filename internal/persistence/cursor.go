// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursor marks the last activity of a page: its start date text and its position in the
// mirrored collection. Pages are ordered by start date, then position, both descending.
type Cursor struct {
	StartDate string
	Position  int
}

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Position, c.StartDate)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token. An empty token means the first page.
func DecodeCursor(token string) (*Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	pos, date, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	position, err := strconv.Atoi(pos)
	if err != nil || position < 0 {
		return nil, fmt.Errorf("invalid cursor position %q", pos)
	}
	return &Cursor{StartDate: date, Position: position}, nil
}
