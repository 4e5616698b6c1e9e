package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBolt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{"memory": NewMemory(), "bolt": b}
}

func TestStoreLastWriteWins(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put("song", []byte("v1")))
			require.NoError(t, s.Put("song", []byte("version-2")))

			v, err := s.Get("song")
			require.NoError(t, err)
			assert.Equal(t, []byte("version-2"), v)
			assert.Equal(t, 1, s.Len())
			assert.Equal(t, []Item{{Key: "song", Size: 9}}, s.List())
		})
	}
}

func TestStoreDoesNotAliasValues(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			in := []byte("abc")
			require.NoError(t, s.Put("k", in))
			in[0] = 'X'

			out, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, []byte("abc"), out)
			out[1] = 'Y'

			again, _ := s.Get("k")
			assert.Equal(t, []byte("abc"), again)
		})
	}
}

func TestStoreDeleteAndMissing(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("nope")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put("b", []byte("2")))
			require.NoError(t, s.Put("a", []byte("1")))
			assert.Equal(t, []string{"a", "b"}, Keys(s))

			ok, err := s.Delete("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.False(t, s.Has("a"))

			ok, err = s.Delete("a")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, s.Put("", []byte("x")), ErrEmptyKey)
		})
	}
}

func TestBoltSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	b, err := OpenBolt(dir)
	require.NoError(t, err)
	require.NoError(t, b.Put("kept.mp3", []byte("bytes")))
	require.NoError(t, b.Close())

	b, err = OpenBolt(dir)
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.Has("kept.mp3"))
}
