package btree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

func newTree(t *testing.T, zones int) (*Tree, *extent.Allocator) {
	t.Helper()
	a := extent.New(zone.NewCache(zone.NewMemStore()))
	require.NoError(t, a.Format(word.NewDBDesc(0, 0, zones), RootImage()))
	return New(a), a
}

func refFor(k word.Word) word.Handle {
	return word.Handle(k%500 + 1)
}

func insertKey(t *testing.T, tr *Tree, k word.Word) error {
	t.Helper()
	var c Cursor
	found, err := tr.Search(&c, k)
	require.NoError(t, err)
	require.False(t, found, "key %d already present", k)
	return tr.Insert(&c, k, refFor(k))
}

func deleteKey(t *testing.T, tr *Tree, k word.Word) {
	t.Helper()
	var c Cursor
	found, err := tr.Search(&c, k)
	require.NoError(t, err)
	require.True(t, found, "key %d missing", k)
	require.NoError(t, tr.Delete(&c))
}

func forward(t *testing.T, tr *Tree) []word.Word {
	t.Helper()
	var c Cursor
	var keys []word.Word
	e, err := tr.First(&c)
	for err == nil {
		keys = append(keys, e.Key)
		e, err = tr.Next(&c)
	}
	require.ErrorIs(t, err, dberror.ErrNoNext)
	return keys
}

func backward(t *testing.T, tr *Tree) []word.Word {
	t.Helper()
	var c Cursor
	var keys []word.Word
	e, err := tr.Last(&c)
	for err == nil {
		keys = append(keys, e.Key)
		e, err = tr.Prev(&c)
	}
	require.ErrorIs(t, err, dberror.ErrNoPrev)
	return keys
}

func verify(t *testing.T, tr *Tree, a *extent.Allocator) Stats {
	t.Helper()
	st, err := tr.Verify()
	require.NoError(t, err)
	_, err = a.Check(st.Metablocks)
	require.NoError(t, err)
	return st
}

func TestEmptyTree(t *testing.T) {
	tr, _ := newTree(t, 2)
	require.NoError(t, tr.VerifyRoot())

	var c Cursor
	found, err := tr.Search(&c, 10)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, c.Depth())
	assert.Equal(t, -1, c.Path()[0].Pos)

	_, err = tr.First(&c)
	assert.ErrorIs(t, err, dberror.ErrNoNext)
	_, err = tr.Last(&c)
	assert.ErrorIs(t, err, dberror.ErrNoPrev)

	var fresh Cursor
	_, err = tr.Next(&fresh)
	assert.ErrorIs(t, err, dberror.ErrNoCurrent)
	_, err = tr.Current(&fresh)
	assert.ErrorIs(t, err, dberror.ErrNoCurrent)
}

func TestInsert_KeepsOrderInRoot(t *testing.T) {
	tr, a := newTree(t, 2)
	for _, k := range []word.Word{50, 10, 30, 20, 40} {
		require.NoError(t, insertKey(t, tr, k))
	}

	assert.Equal(t, []word.Word{10, 20, 30, 40, 50}, forward(t, tr))
	assert.Equal(t, []word.Word{50, 40, 30, 20, 10}, backward(t, tr))

	var c Cursor
	found, err := tr.Search(&c, 30)
	require.NoError(t, err)
	require.True(t, found)
	e, err := tr.Current(&c)
	require.NoError(t, err)
	assert.Equal(t, refFor(30), e.Ref)

	st := verify(t, tr, a)
	assert.Equal(t, 1, st.Depth)
	assert.Equal(t, 5, st.Records)
}

func TestInsert_RootGrowsWhenFull(t *testing.T) {
	tr, a := newTree(t, 2)
	for k := word.Word(1); k <= RootCap+1; k++ {
		require.NoError(t, insertKey(t, tr, k))
	}

	st := verify(t, tr, a)
	assert.Equal(t, 2, st.Depth)
	assert.Len(t, st.Metablocks, 1)

	root, err := tr.Root()
	require.NoError(t, err)
	require.Len(t, root.Elems, 1)
	assert.True(t, root.Elems[0].Indirect)
	assert.Equal(t, word.Word(1), root.Elems[0].Key)
}

func TestInsert_NewMinimumPropagatesUp(t *testing.T) {
	tr, a := newTree(t, 4)
	for k := word.Word(100); k < 300; k++ {
		require.NoError(t, insertKey(t, tr, k))
	}
	require.NoError(t, insertKey(t, tr, 5))

	root, err := tr.Root()
	require.NoError(t, err)
	assert.Equal(t, word.Word(5), root.FirstKey())
	verify(t, tr, a)

	var c Cursor
	found, err := tr.Search(&c, 5)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRandomInsertDelete(t *testing.T) {
	tr, a := newTree(t, 40)
	baseline, err := a.Avail()
	require.NoError(t, err)

	const n = 3000
	rng := rand.New(rand.NewSource(7))
	keys := make([]word.Word, n)
	for i, p := range rng.Perm(n) {
		keys[i] = word.Word(p*3 + 1)
	}
	for _, k := range keys {
		require.NoError(t, insertKey(t, tr, k))
	}

	st := verify(t, tr, a)
	assert.Equal(t, n, st.Records)
	assert.GreaterOrEqual(t, st.Depth, 3)

	sorted := append([]word.Word(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, sorted, forward(t, tr))

	reversed := backward(t, tr)
	require.Len(t, reversed, n)
	for i := range reversed {
		require.Equal(t, sorted[n-1-i], reversed[i])
	}

	for _, k := range keys[:n/2] {
		deleteKey(t, tr, k)
	}
	st = verify(t, tr, a)
	assert.Equal(t, n/2, st.Records)

	var c Cursor
	found, err := tr.Search(&c, keys[0])
	require.NoError(t, err)
	assert.False(t, found)

	for _, k := range keys[n/2:] {
		deleteKey(t, tr, k)
	}
	st = verify(t, tr, a)
	assert.Equal(t, 0, st.Records)
	assert.Equal(t, 1, st.Depth)
	assert.Empty(t, st.Metablocks)

	after, err := a.Avail()
	require.NoError(t, err)
	assert.Equal(t, baseline, after)
}

func TestCursor_AfterDelete(t *testing.T) {
	tr, _ := newTree(t, 2)
	for k := word.Word(1); k <= 10; k++ {
		require.NoError(t, insertKey(t, tr, k))
	}

	var c Cursor
	found, err := tr.Search(&c, 5)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, tr.Delete(&c))

	_, err = tr.Current(&c)
	assert.ErrorIs(t, err, dberror.ErrNoCurrent)

	e, err := tr.Next(&c)
	require.NoError(t, err)
	assert.Equal(t, word.Word(6), e.Key)

	_, err = tr.Search(&c, 6)
	require.NoError(t, err)
	require.NoError(t, tr.Delete(&c))
	e, err = tr.Prev(&c)
	require.NoError(t, err)
	assert.Equal(t, word.Word(4), e.Key)
}

func TestCursor_RevalidatesAfterMutation(t *testing.T) {
	tr, _ := newTree(t, 4)
	for k := word.Word(10); k <= 400; k += 10 {
		require.NoError(t, insertKey(t, tr, k))
	}

	var c Cursor
	_, err := tr.Search(&c, 200)
	require.NoError(t, err)

	// another cursor changes the tree shape underneath c
	for k := word.Word(201); k < 210; k++ {
		require.NoError(t, insertKey(t, tr, k))
	}
	deleteKey(t, tr, 10)

	e, err := tr.Next(&c)
	require.NoError(t, err)
	assert.Equal(t, word.Word(201), e.Key)
	e, err = tr.Prev(&c)
	require.NoError(t, err)
	assert.Equal(t, word.Word(200), e.Key)
}

func TestSetRef(t *testing.T) {
	tr, _ := newTree(t, 2)
	require.NoError(t, insertKey(t, tr, 7))

	var c Cursor
	_, err := tr.Search(&c, 7)
	require.NoError(t, err)
	require.NoError(t, tr.SetRef(&c, word.NewHandle(1, 9)))

	e, err := tr.Current(&c)
	require.NoError(t, err)
	assert.Equal(t, word.NewHandle(1, 9), e.Ref)
}

func TestInsert_OverflowLeavesTreeIntact(t *testing.T) {
	tr, a := newTree(t, 1)

	var k word.Word
	var err error
	for k = 1; k < 10000; k++ {
		if err = insertKey(t, tr, k); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, dberror.ErrOverflow)

	st := verify(t, tr, a)
	assert.Equal(t, int(k-1), st.Records)

	var c Cursor
	found, serr := tr.Search(&c, k)
	require.NoError(t, serr)
	assert.False(t, found)
}
