package pagination

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

type Pagination struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit,default=10" validate:"gte=1,lte=250"` // Min 1, Max 250
}

type Cursor struct {
	CreatedAt string `json:"created_at,omitempty"`
	ID        string `json:"id,omitempty"`
}

type PageInfo struct {
	NextCursor     string `json:"next_cursor"`
	PreviousCursor string `json:"previous_cursor"`
	HasMore        bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}

	return &cursor, nil
}

// Trim drops the look-ahead row fetched by option.ApplyPagination and
// returns the page together with its PageInfo.
func Trim[T any](data []*T, limit int, extractCursor func(*T) Cursor) ([]*T, *PageInfo) {
	if limit <= 0 {
		limit = 10
	}
	if len(data) == 0 {
		return data, &PageInfo{}
	}

	info := &PageInfo{}
	if len(data) > limit {
		info.HasMore = true
		data = data[:limit]
	}

	if info.HasMore {
		next, err := EncodeCursor(extractCursor(data[len(data)-1]))
		if err == nil {
			info.NextCursor = next
		}
	}

	return data, info
}

// CursorFrom builds the keyset cursor for a row ordered by created_at, id.
func CursorFrom(createdAt time.Time, id string) Cursor {
	return Cursor{CreatedAt: createdAt.UTC().Format(time.RFC3339Nano), ID: id}
}
