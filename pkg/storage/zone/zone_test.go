package zone

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/word"
)

func TestEmpty_Layout(t *testing.T) {
	z := Empty(0o123)
	assert.Equal(t, word.Word(0o123), z.Header())
	c := z.Control()
	assert.EqualValues(t, DataStart, c.Free)
	assert.EqualValues(t, 0, c.Count)
	assert.Equal(t, word.Capacity, c.FreeWords())
	assert.Empty(t, z.Descriptors())
}

func TestDescriptorSlots_GrowDown(t *testing.T) {
	z := Empty(0)
	z.SetDescriptor(0, word.Descriptor{Start: 2, Length: 3, ID: 1})
	z.SetDescriptor(1, word.Descriptor{Start: 5, Length: 1, ID: 2})
	z.SetControl(word.Control{Free: 6, Count: 2})

	assert.Equal(t, 1023, DescriptorSlot(0))
	assert.EqualValues(t, 1, word.UnpackDescriptor(z[1023]).ID)
	assert.EqualValues(t, 2, word.UnpackDescriptor(z[1022]).ID)
	assert.Len(t, z.Descriptors(), 2)
}

func TestDecode_RejectsShortImage(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assert.Error(t, err)
}

func TestDirStore_MissingZoneIsSentinel(t *testing.T) {
	s, err := NewDirStore(primitives.Filepath(t.TempDir()))
	require.NoError(t, err)

	z, err := s.ReadZone(7)
	require.NoError(t, err)
	for _, w := range z {
		require.Equal(t, word.Sentinel, w)
	}
}

func TestDirStore_WritesOctalNamedFile(t *testing.T) {
	dir := primitives.Filepath(t.TempDir())
	s, err := NewDirStore(dir)
	require.NoError(t, err)

	z := Empty(0o777)
	z[100] = 0o4242
	require.NoError(t, s.WriteZone(primitives.AbsZone(9), z))

	info, err := os.Stat(dir.Join("000011").String())
	require.NoError(t, err)
	assert.EqualValues(t, Size, info.Size())

	got, err := s.ReadZone(9)
	require.NoError(t, err)
	assert.Equal(t, z, got)
}

func newBoundCache(t *testing.T, zones int) (*Cache, *MemStore, word.DBDesc) {
	t.Helper()
	store := NewMemStore()
	db := word.NewDBDesc(0, 0, zones)
	for i := 0; i < zones; i++ {
		z := primitives.ZoneNumber(i)
		require.NoError(t, store.WriteZone(db.Abs(z), Empty(db.ZoneKey(z))))
	}
	store.Writes = 0
	c := NewCache(store)
	require.NoError(t, c.Bind(db))
	return c, store, db
}

func TestCache_ReloadIsNoop(t *testing.T) {
	c, store, _ := newBoundCache(t, 3)

	first, err := c.Load(1)
	require.NoError(t, err)
	second, err := c.Load(1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Reads)
}

func TestCache_CatalogStaysResident(t *testing.T) {
	c, store, _ := newBoundCache(t, 3)

	cat, err := c.Load(0)
	require.NoError(t, err)
	_, err = c.Load(1)
	require.NoError(t, err)
	_, err = c.Load(2)
	require.NoError(t, err)
	again, err := c.Load(0)
	require.NoError(t, err)

	assert.Same(t, cat, again)
	assert.Equal(t, 3, store.Reads)
}

func TestCache_WritesBackDirtyDataOnRotate(t *testing.T) {
	c, store, db := newBoundCache(t, 3)

	z, err := c.Load(1)
	require.NoError(t, err)
	z[500] = 42
	c.MarkDirty(1)

	_, err = c.Load(2)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes)

	persisted, err := store.ReadZone(db.Abs(1))
	require.NoError(t, err)
	assert.Equal(t, word.Word(42), persisted[500])

	// clean buffers are not written back
	_, err = c.Load(1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes)
}

func TestCache_FlushWritesBothBuffers(t *testing.T) {
	c, store, _ := newBoundCache(t, 2)

	_, err := c.Load(0)
	require.NoError(t, err)
	_, err = c.Load(1)
	require.NoError(t, err)
	c.MarkDirty(0)
	c.MarkDirty(1)

	require.NoError(t, c.Flush())
	assert.Equal(t, 2, store.Writes)

	require.NoError(t, c.Flush())
	assert.Equal(t, 2, store.Writes)
}

func TestCache_DetectsCorruptZone(t *testing.T) {
	c, store, db := newBoundCache(t, 3)
	require.NoError(t, store.WriteZone(db.Abs(2), Empty(db.ZoneKey(1))))

	_, err := c.Load(2)
	assert.ErrorIs(t, err, dberror.ErrPageCorrupted)
}

func TestCache_UnwrittenZoneIsCorrupt(t *testing.T) {
	store := NewMemStore()
	c := NewCache(store)
	require.NoError(t, c.Bind(word.NewDBDesc(0, 0, 4)))

	_, err := c.Load(3)
	assert.ErrorIs(t, err, dberror.ErrPageCorrupted)
}

func TestCache_OpenCatalog(t *testing.T) {
	c, _, _ := newBoundCache(t, 2)
	_, err := c.OpenCatalog()
	require.NoError(t, err)

	// same zones, different descriptor
	require.NoError(t, c.Bind(word.NewDBDesc(0, 0, 3)))
	_, err = c.OpenCatalog()
	assert.ErrorIs(t, err, dberror.ErrBadCatalog)
}

func TestCache_LoadOutsideDatabase(t *testing.T) {
	c, _, _ := newBoundCache(t, 2)
	_, err := c.Load(2)
	assert.ErrorIs(t, err, dberror.ErrInternal)
}
