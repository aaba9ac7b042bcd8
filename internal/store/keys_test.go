package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "user#1755000000000001", userKey(1755000000000001))
	require.Equal(t, "chat#abc123", chatKey("abc123"))
	require.Equal(t, "message#42", messageKey(42))
}

func TestKeyIDRoundTrip(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc123", keyID(kindChat, chatKey("abc123")))
	require.Equal(t, int64(1755000000000001), numericKeyID(kindUser, userKey(1755000000000001)))
	require.Equal(t, int64(42), numericKeyID(kindMessage, messageKey(42)))
}

func TestKeyIDWrongKindPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { keyID(kindUser, "chat#123") })
	require.Panics(t, func() { numericKeyID(kindUser, "user#not-a-number") })
}
