package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity kinds. Every row in the table belongs to exactly one kind, and the
// kind is the first component of the row key.
const (
	kindUser    = "user"
	kindChat    = "chat"
	kindMessage = "message"
)

func rowKey(kind, id string) string { return kind + "#" + id }

func userKey(id int64) string    { return rowKey(kindUser, strconv.FormatInt(id, 10)) }
func chatKey(id string) string   { return rowKey(kindChat, id) }
func messageKey(id int64) string { return rowKey(kindMessage, strconv.FormatInt(id, 10)) }

// kindPrefix is the row range prefix covering all rows of a kind.
func kindPrefix(kind string) string { return kind + "#" }

// keyID strips the "<kind>#" prefix from a row key. This package only ever
// decodes keys it wrote itself, so a malformed key is a programmer error,
// not a recoverable condition.
func keyID(kind, key string) string {
	id, ok := strings.CutPrefix(key, kindPrefix(kind))
	if !ok {
		panic(fmt.Sprintf("store: row key %q is not a %s key", key, kind))
	}
	return id
}

func numericKeyID(kind, key string) int64 {
	id, err := strconv.ParseInt(keyID(kind, key), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("store: row key %q does not end in a decimal id: %v", key, err))
	}
	return id
}
