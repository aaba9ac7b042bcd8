package store

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigtable"
)

// timeLayout is the cell encoding for timestamps: RFC 3339 with
// nanoseconds, always UTC. Integers are stored as decimal strings and
// everything else as UTF-8 text, so every cell in the table is readable
// with cbt alone.
const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// flattenRow reduces a row to a qualifier -> newest-cell-value map, with
// the family prefix stripped from each column name. The families never
// reuse a qualifier, so the flat map is unambiguous.
func flattenRow(r bigtable.Row) map[string]string {
	cells := make(map[string]string)
	for _, items := range r {
		for _, item := range items {
			// item.Column is "family:qualifier".
			qual := item.Column
			if i := strings.IndexByte(qual, ':'); i >= 0 {
				qual = qual[i+1:]
			}
			if _, ok := cells[qual]; !ok {
				cells[qual] = string(item.Value)
			}
		}
	}
	return cells
}

func requiredCell(key string, cells map[string]string, field string) (string, error) {
	v, ok := cells[field]
	if !ok {
		return "", &MalformedRecordError{Key: key, Field: field}
	}
	return v, nil
}

func requiredTimeCell(key string, cells map[string]string, field string) (time.Time, error) {
	v, err := requiredCell(key, cells, field)
	if err != nil {
		return time.Time{}, err
	}
	t, err := decodeTime(v)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Key: key, Field: field}
	}
	return t, nil
}

func requiredIntCell(key string, cells map[string]string, field string) (int64, error) {
	v, err := requiredCell(key, cells, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &MalformedRecordError{Key: key, Field: field}
	}
	return n, nil
}

// optionalTimeCell returns nil when the column is absent or empty; a
// present but unparsable value is still malformed.
func optionalTimeCell(key string, cells map[string]string, field string) (*time.Time, error) {
	v, ok := cells[field]
	if !ok || v == "" {
		return nil, nil
	}
	t, err := decodeTime(v)
	if err != nil {
		return nil, &MalformedRecordError{Key: key, Field: field}
	}
	return &t, nil
}

// decodeUser reconstructs a User from its row. The id comes from the row
// key, never from a stored column.
func decodeUser(key string, r bigtable.Row) (*User, error) {
	cells := flattenRow(r)
	u := &User{ID: numericKeyID(kindUser, key)}

	var err error
	if u.Name, err = requiredCell(key, cells, "name"); err != nil {
		return nil, err
	}
	if u.Email, err = requiredCell(key, cells, "email"); err != nil {
		return nil, err
	}
	if u.GoogleID, err = requiredCell(key, cells, "google_id"); err != nil {
		return nil, err
	}
	if pic, ok := cells["picture"]; ok {
		u.Picture = &pic
	}
	if u.CreatedAt, err = requiredTimeCell(key, cells, "created_at"); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = optionalTimeCell(key, cells, "updated_at"); err != nil {
		return nil, err
	}
	return u, nil
}

func decodeChat(key string, r bigtable.Row) (*Chat, error) {
	cells := flattenRow(r)
	c := &Chat{ID: keyID(kindChat, key)}

	var err error
	if c.Title, err = requiredCell(key, cells, "title"); err != nil {
		return nil, err
	}
	if c.UserID, err = requiredIntCell(key, cells, "user_id"); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = requiredTimeCell(key, cells, "created_at"); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = optionalTimeCell(key, cells, "updated_at"); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeMessage(key string, r bigtable.Row) (*ChatMessage, error) {
	cells := flattenRow(r)
	m := &ChatMessage{ID: numericKeyID(kindMessage, key)}

	var err error
	if m.ChatID, err = requiredCell(key, cells, "chat_id"); err != nil {
		return nil, err
	}
	if m.UserID, err = requiredIntCell(key, cells, "user_id"); err != nil {
		return nil, err
	}
	if m.MessageType, err = requiredCell(key, cells, "message_type"); err != nil {
		return nil, err
	}
	if m.Content, err = requiredCell(key, cells, "content"); err != nil {
		return nil, err
	}
	if v, ok := cells["tokens_used"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &MalformedRecordError{Key: key, Field: "tokens_used"}
		}
		m.TokensUsed = &n
	}
	if model, ok := cells["model"]; ok {
		m.Model = &model
	}
	if m.CreatedAt, err = requiredTimeCell(key, cells, "created_at"); err != nil {
		return nil, err
	}
	return m, nil
}
