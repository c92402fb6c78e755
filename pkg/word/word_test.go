package word

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zonedb/pkg/primitives"
)

func TestWord_FieldAndWith(t *testing.T) {
	var w Word
	w = w.With(10, 10, 0o1777)
	assert.Equal(t, Word(0o1777<<10), w)
	assert.Equal(t, uint64(0o1777), w.Field(10, 10))

	// values wider than the field are truncated
	w = Word(0).With(0, 4, 0xff)
	assert.Equal(t, Word(0xf), w)
}

func TestValidKey(t *testing.T) {
	assert.False(t, ValidKey(0))
	assert.True(t, ValidKey(1))
	assert.True(t, ValidKey(KeyMask))
	assert.False(t, ValidKey(1<<47))
}

func TestEncodeDecode_BigEndian(t *testing.T) {
	buf := make([]byte, Bytes)
	Word(0x010203040506).Encode(buf)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf)
	assert.Equal(t, Word(0x010203040506), Decode(buf))

	Sentinel.Encode(buf)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, buf)
}

func TestFromBytes_PadsLastWord(t *testing.T) {
	ws := FromBytes([]byte("abcdefgh"))
	require.Len(t, ws, 2)
	assert.Equal(t, Word(0x616263646566), ws[0])
	assert.Equal(t, Word(0x676800000000), ws[1])
	assert.Equal(t, []byte("abcdefgh"), ToBytes(ws, 8))
	assert.Empty(t, FromBytes(nil))
	assert.Equal(t, 0, WordsFor(0))
	assert.Equal(t, 1, WordsFor(6))
	assert.Equal(t, 2, WordsFor(7))
}

func TestHandle(t *testing.T) {
	h := NewHandle(3, 7)
	assert.Equal(t, Handle(3<<9|7), h)
	assert.Equal(t, primitives.ZoneNumber(3), h.Zone())
	assert.Equal(t, primitives.ExtentID(7), h.ID())
	assert.False(t, h.IsZero())
	assert.True(t, NewHandle(5, 0).IsZero())
	assert.Equal(t, "{3,7}", h.String())
}

func TestControl_Layout(t *testing.T) {
	c := Control{Free: 2, Count: 0}
	assert.Equal(t, Word(2), c.Pack())
	assert.Equal(t, Capacity, c.FreeWords())

	c = Control{Free: 100, Count: 3, Locked: true}
	w := c.Pack()
	assert.True(t, w.Bit(47))
	assert.Equal(t, uint64(3), w.Field(10, 10))
	assert.Equal(t, c, UnpackControl(w))
	assert.Equal(t, ZoneWords-100-3, c.FreeWords())
}

func TestDescriptor_Layout(t *testing.T) {
	d := Descriptor{Start: 2, Length: 65, Next: NewHandle(1, 4), ID: 1}
	w := d.Pack()
	assert.Equal(t, uint64(2), w.Field(38, 10))
	assert.Equal(t, uint64(65), w.Field(28, 10))
	assert.Equal(t, uint64(NewHandle(1, 4)), w.Field(9, 19))
	assert.Equal(t, uint64(1), w.Field(0, 9))
	assert.Equal(t, d, UnpackDescriptor(w))
	assert.Equal(t, 67, d.End())
}

func TestMetaHeader_Layout(t *testing.T) {
	m := MetaHeader{Count: 64, Next: NewHandle(2, 1), Prev: NewHandle(1, 3)}
	w := m.Pack()
	assert.Equal(t, uint64(64), w.Field(38, 10))
	assert.Equal(t, uint64(NewHandle(2, 1)), w.Field(19, 19))
	assert.Equal(t, uint64(NewHandle(1, 3)), w.Field(0, 19))
	assert.Equal(t, m, UnpackMetaHeader(w))
}

func TestElement_IndirectFlag(t *testing.T) {
	k, v := Element{Key: 42, Ref: NewHandle(1, 2), Indirect: true}.Pack()
	assert.Equal(t, Word(42), k)
	assert.True(t, v.Bit(47))
	e := UnpackElement(k, v)
	assert.True(t, e.Indirect)
	assert.Equal(t, NewHandle(1, 2), e.Ref)

	_, v = Element{Key: 42, Ref: NewHandle(1, 2)}.Pack()
	assert.False(t, v.Bit(47))
}

func TestRecordHeader_Layout(t *testing.T) {
	w := RecordHeader{Date: 20000, Len: 13}.Pack()
	assert.Equal(t, Word(20000)<<24|13, w)
	assert.Equal(t, uint32(13), UnpackRecordHeader(w).Len)
}

func TestDBDesc(t *testing.T) {
	d := NewDBDesc(1, 10, 5)
	assert.Equal(t, primitives.Unit(1), d.Unit())
	assert.Equal(t, primitives.ZoneNumber(10), d.Start())
	assert.Equal(t, 5, d.Length())
	assert.True(t, d.Valid())
	assert.Equal(t, primitives.AbsZone(1024+10+2), d.Abs(2))

	assert.Equal(t, Word(0), d.Key()&(1<<20-1))
	assert.Equal(t, d.Key()|3, d.ZoneKey(3))

	tests := []struct {
		name  string
		desc  DBDesc
		valid bool
	}{
		{"zero length", NewDBDesc(0, 0, 0), false},
		{"historical maximum", NewDBDesc(0, 0, MaxDBLength), true},
		{"beyond maximum", NewDBDesc(0, 0, MaxDBLength+1), false},
		{"runs past unit end", NewDBDesc(0, 1020, 5), false},
		{"ends at unit end", NewDBDesc(0, 1020, 4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.desc.Valid())
		})
	}
}
