package authstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("user:alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("user:alice", []byte("hash-1")))
	v, ok, err := s.Get("user:alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hash-1"), v)

	require.NoError(t, s.Delete("user:alice"))
	_, ok, err = s.Get("user:alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteAbsentKeyIsNotError(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Delete("no-such-key"))
}

func TestRangeByPrefix(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("user:alice", []byte("a")))
	require.NoError(t, s.Set("user:bob", []byte("b")))
	require.NoError(t, s.Set("session:xyz", []byte("s")))

	seen := map[string][]byte{}
	require.NoError(t, s.Range("user:", func(key string, value []byte) bool {
		seen[key] = value
		return true
	}))
	require.Len(t, seen, 2)
	require.Equal(t, []byte("a"), seen["user:alice"])
	require.Equal(t, []byte("b"), seen["user:bob"])
}

func TestRangeStopsEarly(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("user:alice", []byte("a")))
	require.NoError(t, s.Set("user:bob", []byte("b")))

	count := 0
	require.NoError(t, s.Range("user:", func(key string, value []byte) bool {
		count++
		return false
	}))
	require.Equal(t, 1, count)
}
