package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dberror "zonedb/pkg/error"
)

func collect(t *testing.T, it *Iterator) ([]Key, []string) {
	t.Helper()
	var keys []Key
	var values []string
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		k, data, err := it.Next()
		require.NoError(t, err)
		keys = append(keys, k)
		values = append(values, string(data))
	}
	return keys, values
}

func TestIterator_BothDirections(t *testing.T) {
	s := newStore(t, 2)
	for _, k := range []Key{30, 10, 20} {
		require.NoError(t, s.Put(k, []byte{byte('a' + k/10)}))
	}

	it := s.Iterator(Forward)
	require.NoError(t, it.Open())
	keys, values := collect(t, it)
	assert.Equal(t, []Key{10, 20, 30}, keys)
	assert.Equal(t, []string{"b", "c", "d"}, values)

	back := s.Iterator(Backward)
	require.NoError(t, back.Open())
	keys, _ = collect(t, back)
	assert.Equal(t, []Key{30, 20, 10}, keys)
}

func TestIterator_RewindAndExhaustion(t *testing.T) {
	s := newStore(t, 1)
	require.NoError(t, s.Put(5, []byte("five")))

	it := s.Iterator(Forward)
	_, err := it.HasNext()
	assert.Equal(t, dberror.KindNoCurrent, dberror.KindOf(err))

	require.NoError(t, it.Open())
	keys, _ := collect(t, it)
	assert.Equal(t, []Key{5}, keys)

	_, _, err = it.Next()
	assert.Equal(t, dberror.KindNoNext, dberror.KindOf(err))

	require.NoError(t, it.Rewind())
	keys, _ = collect(t, it)
	assert.Equal(t, []Key{5}, keys)

	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
}

func TestIterator_EmptyDatabase(t *testing.T) {
	s := newStore(t, 1)
	it := s.Iterator(Forward)
	require.NoError(t, it.Open())
	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}
