package engine

import (
	"bytes"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zonedb/pkg/config"
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/vm"
	"zonedb/pkg/word"
)

func newStore(t *testing.T, zones int) *Store {
	t.Helper()
	s := New(zone.NewMemStore(), Options{ZeroDate: true, PasswordCost: 4})
	require.NoError(t, s.Init(word.NewDBDesc(0, 0, zones)))
	return s
}

func avail(t *testing.T, s *Store) int {
	t.Helper()
	n, err := s.Avail()
	require.NoError(t, err)
	return n
}

func checked(t *testing.T, s *Store) Report {
	t.Helper()
	rep, err := s.Check()
	require.NoError(t, err)
	assert.Empty(t, rep.Leaked)
	return rep
}

func keys(t *testing.T, s *Store, backward bool) []Key {
	t.Helper()
	start, step := s.First, s.Next
	if backward {
		start, step = s.Last, s.Prev
	}
	var out []Key
	k, ok, err := start()
	for ; ok && err == nil; k, ok, err = step() {
		out = append(out, k)
	}
	require.NoError(t, err)
	return out
}

func payload(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t, 8)
	sizes := []int{0, 1, 5, 6, 7, 100, 1000, 7000}
	for i, n := range sizes {
		require.NoError(t, s.Put(Key(i+1), payload(n, int64(i))), "size %d", n)
	}
	for i, n := range sizes {
		got, err := s.Fetch(Key(i + 1))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload(n, int64(i)), got), "size %d", n)
	}
	rep := checked(t, s)
	assert.Equal(t, len(sizes), rep.Records)
}

func TestDeleteRestoresAvail(t *testing.T) {
	s := newStore(t, 4)
	before := avail(t, s)

	require.NoError(t, s.Put(0o1234, payload(300, 1)))
	assert.Less(t, avail(t, s), before)

	require.NoError(t, s.Delete(0o1234))
	_, err := s.Fetch(0o1234)
	assert.ErrorIs(t, err, dberror.ErrNoSuchName)
	assert.Equal(t, before, avail(t, s))
	assert.ErrorIs(t, s.Delete(0o1234), dberror.ErrNoSuchName)
}

func TestIteration_OrderedBothWays(t *testing.T) {
	s := newStore(t, 16)
	rng := rand.New(rand.NewSource(7))
	want := map[Key]bool{}
	for len(want) < 700 {
		k := Key(rng.Int63n(1<<40) + 1)
		if want[k] {
			continue
		}
		want[k] = true
		require.NoError(t, s.Put(k, payload(rng.Intn(20), int64(k))))
	}

	fwd := keys(t, s, false)
	require.Len(t, fwd, len(want))
	assert.True(t, sort.SliceIsSorted(fwd, func(i, j int) bool { return fwd[i] < fwd[j] }))
	for _, k := range fwd {
		assert.True(t, want[k])
	}

	// once past the end, Next keeps reporting none
	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	bwd := keys(t, s, true)
	require.Len(t, bwd, len(fwd))
	for i := range fwd {
		assert.Equal(t, fwd[i], bwd[len(bwd)-1-i])
	}

	_, ok, err = s.Prev()
	require.NoError(t, err)
	assert.False(t, ok)

	// from the smallest key, Next moves forward again
	k, ok, err := s.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, fwd[1], k)
	checked(t, s)
}

func TestOverflow_EarlierRecordsSurvive(t *testing.T) {
	s := newStore(t, 2)
	data := payload(500, 3)

	var stored []Key
	var err error
	for k := Key(1); k < 1000; k++ {
		if err = s.Put(k, data); err != nil {
			break
		}
		stored = append(stored, k)
	}
	require.ErrorIs(t, err, dberror.ErrOverflow)
	require.NotEmpty(t, stored)

	failed := stored[len(stored)-1] + 1
	found, err := s.Find(failed)
	require.NoError(t, err)
	assert.False(t, found, "the failing record must not be indexed")

	for _, k := range stored {
		got, err := s.Fetch(k)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
	rep := checked(t, s)
	assert.Equal(t, len(stored), rep.Records)
}

func TestSubstore_Isolation(t *testing.T) {
	s := newStore(t, 8)
	for k := Key(1); k <= 3; k++ {
		require.NoError(t, s.Put(k, []byte("parent")))
	}
	require.NoError(t, s.CreateSubstore("projects", word.NewDBDesc(0, 8, 8), ""))
	parentKeys := keys(t, s, false)
	assert.Contains(t, parentKeys, vm.NameKey("projects"))

	require.NoError(t, s.OpenSubstore("projects", ""))
	assert.Equal(t, 1, s.Depth())
	assert.Empty(t, keys(t, s, false))
	for k := Key(1); k <= 50; k++ {
		require.NoError(t, s.Put(k, []byte("child")))
	}
	checked(t, s)

	require.NoError(t, s.Leave())
	assert.Equal(t, parentKeys, keys(t, s, false))
	got, err := s.Fetch(2)
	require.NoError(t, err)
	assert.Equal(t, "parent", string(got))

	require.NoError(t, s.OpenSubstore("projects", ""))
	assert.Len(t, keys(t, s, false), 50)
	require.NoError(t, s.Leave())

	assert.ErrorIs(t, s.OpenSubstore("missing", ""), dberror.ErrNoSuchName)
	assert.ErrorIs(t, s.CreateSubstore("", word.NewDBDesc(0, 20, 2), ""), dberror.ErrInvalidName)
}

func TestSubstore_Password(t *testing.T) {
	s := newStore(t, 4)
	require.NoError(t, s.CreateSubstore("vault", word.NewDBDesc(0, 4, 2), "hunter2"))

	assert.ErrorIs(t, s.OpenSubstore("vault", ""), dberror.ErrWrongPassword)
	assert.ErrorIs(t, s.OpenSubstore("vault", "hunter3"), dberror.ErrWrongPassword)
	require.NoError(t, s.OpenSubstore("vault", "hunter2"))
	assert.Equal(t, word.NewDBDesc(0, 4, 2), s.DB())
}

func TestSubstore_NameKeyHeldByUserRecord(t *testing.T) {
	s := newStore(t, 4)
	k := vm.NameKey("docs")
	require.NoError(t, s.Put(k, []byte("user")))

	assert.ErrorIs(t, s.OpenSubstore("docs", ""), dberror.ErrNoSuchName)
	assert.ErrorIs(t, s.CreateSubstore("docs", word.NewDBDesc(0, 4, 2), ""), dberror.ErrNameExists)
	assert.Equal(t, 0, s.Depth())

	got, err := s.Fetch(k)
	require.NoError(t, err)
	assert.Equal(t, "user", string(got))
	checked(t, s)
}

func TestTwoEmptyRecords(t *testing.T) {
	s := newStore(t, 1)
	base := avail(t, s)

	require.NoError(t, s.Put(1, nil))
	require.NoError(t, s.Put(2, nil))
	for _, k := range []Key{1, 2} {
		found, err := s.Find(k)
		require.NoError(t, err)
		assert.True(t, found)
	}
	assert.Equal(t, base-2*extent.Overhead, avail(t, s))

	require.NoError(t, s.Delete(1))
	assert.Equal(t, base-extent.Overhead, avail(t, s))
	require.NoError(t, s.Delete(2))
	assert.Equal(t, base, avail(t, s))
}

func TestTwoZoneSplit(t *testing.T) {
	s := newStore(t, 2)
	alloc := s.session.Allocator()
	before, err := alloc.FreeTable()
	require.NoError(t, err)

	// more words than either zone holds
	data := payload(1200*word.Bytes, 11)
	require.NoError(t, s.Put(5, data))

	during, err := alloc.FreeTable()
	require.NoError(t, err)
	assert.Less(t, during[0], before[0])
	assert.Less(t, during[1], before[1])

	got, err := s.Fetch(5)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	checked(t, s)

	require.NoError(t, s.Delete(5))
	after, err := alloc.FreeTable()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateAndCurrentRecord(t *testing.T) {
	s := newStore(t, 4)
	require.NoError(t, s.Update(10, []byte("short")))
	require.NoError(t, s.Update(10, payload(2000, 5)))

	found, err := s.Find(10)
	require.NoError(t, err)
	require.True(t, found)
	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, 2000, n)

	buf := make([]byte, 10)
	n, err = s.Get(10, buf)
	assert.ErrorIs(t, err, dberror.ErrRecordTooLong)
	assert.Equal(t, 2000, n)
	checked(t, s)
}

func TestPartialAccess(t *testing.T) {
	s := newStore(t, 2)
	require.NoError(t, s.Put(3, []byte("name:zonedb\x00tail")))

	head, err := s.ReadUntil(3, 0, 64)
	require.NoError(t, err)
	assert.Equal(t, "name:zonedb", string(head))

	require.NoError(t, s.WriteAt(3, 5, []byte("ZONE")))
	ok, err := s.Equal(3, 5, []byte("ZONEdb"))
	require.NoError(t, err)
	assert.True(t, ok)

	buf := make([]byte, 4)
	n, err := s.ReadAt(3, 12, buf)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(buf[:n]))

	assert.ErrorIs(t, s.WriteAt(3, 14, []byte("long")), dberror.ErrSeekOutOfBounds)
}

func TestClear(t *testing.T) {
	for _, dir := range []Direction{Forward, Backward} {
		s := newStore(t, 8)
		base := avail(t, s)
		for k := Key(1); k <= 400; k++ {
			require.NoError(t, s.Put(k*3, payload(int(k%40), int64(k))))
		}
		require.NoError(t, s.Clear(dir))
		assert.Empty(t, keys(t, s, false))
		assert.Equal(t, base, avail(t, s))
		checked(t, s)
	}
}

func TestLock_ExcludesSecondSession(t *testing.T) {
	zones := zone.NewMemStore()
	db := word.NewDBDesc(0, 0, 2)
	a := New(zones, Options{})
	require.NoError(t, a.Init(db))
	b := New(zones, Options{})
	require.NoError(t, b.OpenDB(db))

	require.NoError(t, a.Lock())
	require.NoError(t, a.Put(1, []byte("a")))
	assert.ErrorIs(t, b.Put(2, []byte("b")), dberror.ErrAlreadyLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Put(2, []byte("b")))
}

func TestEval_CustomProgram(t *testing.T) {
	s := newStore(t, 2)
	require.NoError(t, s.Put(8, []byte("abcdef")))

	regs := &vm.Registers{Key: 8}
	prog := vm.Program{vm.I(vm.OpFind), vm.I(vm.OpMatch), vm.I(vm.OpLength), vm.Copy(vm.RegR1, vm.RegLen), vm.I(vm.OpStop)}
	require.NoError(t, s.Eval(prog, regs))
	assert.Equal(t, word.Word(6), regs.R[1])
}

func TestInvalidKeys(t *testing.T) {
	s := newStore(t, 2)
	assert.ErrorIs(t, s.Put(0, []byte("x")), dberror.ErrInvalidName)
	assert.ErrorIs(t, s.Put(1<<47, []byte("x")), dberror.ErrInvalidName)
	_, err := s.Find(0)
	assert.ErrorIs(t, err, dberror.ErrInvalidName)
}

func TestOpen_PersistsToZoneDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Start, cfg.Length = 8, 2
	cfg.PasswordCost = 4

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Init(cfg.DBDesc()))
	require.NoError(t, s.Put(42, []byte("durable")))
	require.NoError(t, s.Close())

	dir := primitives.Filepath(cfg.DataDir)
	assert.FileExists(t, dir.Join("000010").String())
	assert.FileExists(t, dir.Join("000011").String())

	s, err = Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.OpenDB(cfg.DBDesc()))
	got, err := s.Fetch(42)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(got))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, New(zone.NewMemStore(), Options{}).OpenDB(cfg.DBDesc()), dberror.ErrBadCatalog)
}
