package word

import (
	"fmt"
	"zonedb/pkg/primitives"
)

// Control is word 1 of every zone.
//
//	bits 0-9   free area start offset
//	bits 10-19 extent count
//	bit  47    advisory lock (zone 0 only)
type Control struct {
	Free   uint16
	Count  uint16
	Locked bool
}

func (c Control) Pack() Word {
	var w Word
	w = w.With(0, 10, uint64(c.Free))
	w = w.With(10, 10, uint64(c.Count))
	if c.Locked {
		w = w.With(47, 1, 1)
	}
	return w
}

func UnpackControl(w Word) Control {
	return Control{
		Free:   uint16(w.Field(0, 10)),
		Count:  uint16(w.Field(10, 10)),
		Locked: w.Bit(47),
	}
}

// FreeWords is the size of the gap between the data area and the descriptor array.
func (c Control) FreeWords() int {
	return ZoneWords - int(c.Free) - int(c.Count)
}

// Descriptor describes one extent of a zone.
//
//	bits 38-47 start offset
//	bits 28-37 length in words
//	bits 9-27  continuation handle
//	bits 0-8   extent id
type Descriptor struct {
	Start  uint16
	Length uint16
	Next   Handle
	ID     primitives.ExtentID
}

func (d Descriptor) Pack() Word {
	var w Word
	w = w.With(38, 10, uint64(d.Start))
	w = w.With(28, 10, uint64(d.Length))
	w = w.With(9, HandleBits, uint64(d.Next))
	w = w.With(0, 9, uint64(d.ID))
	return w
}

func UnpackDescriptor(w Word) Descriptor {
	return Descriptor{
		Start:  uint16(w.Field(38, 10)),
		Length: uint16(w.Field(28, 10)),
		Next:   Handle(w.Field(9, HandleBits)),
		ID:     primitives.ExtentID(w.Field(0, 9)),
	}
}

// End is the offset one past the last word of the extent.
func (d Descriptor) End() int {
	return int(d.Start) + int(d.Length)
}

// MetaHeader is the first word of a metablock.
//
//	bits 38-47 element count
//	bits 19-37 next sibling handle
//	bits 0-18  previous sibling handle
type MetaHeader struct {
	Count uint16
	Next  Handle
	Prev  Handle
}

func (m MetaHeader) Pack() Word {
	var w Word
	w = w.With(38, 10, uint64(m.Count))
	w = w.With(19, HandleBits, uint64(m.Next))
	w = w.With(0, HandleBits, uint64(m.Prev))
	return w
}

func UnpackMetaHeader(w Word) MetaHeader {
	return MetaHeader{
		Count: uint16(w.Field(38, 10)),
		Next:  Handle(w.Field(19, HandleBits)),
		Prev:  Handle(w.Field(0, HandleBits)),
	}
}

// Element is one key/handle pair of a metablock. It occupies two words: the key,
// then the reference with bit 47 set when it points at a child metablock.
type Element struct {
	Key      Word
	Ref      Handle
	Indirect bool
}

const indirectBit = 47

func (e Element) Pack() (Word, Word) {
	v := Word(e.Ref)
	if e.Indirect {
		v = v.With(indirectBit, 1, 1)
	}
	return e.Key & Mask, v
}

func UnpackElement(k, v Word) Element {
	return Element{
		Key:      k & Mask,
		Ref:      Handle(v.Field(0, HandleBits)),
		Indirect: v.Bit(indirectBit),
	}
}

// RecordHeader is the first word of every user record.
//
//	bits 24-47 date stamp (days since 1970, or 0)
//	bits 0-23  payload length in bytes
type RecordHeader struct {
	Date uint32
	Len  uint32
}

func (r RecordHeader) Pack() Word {
	var w Word
	w = w.With(24, 24, uint64(r.Date))
	w = w.With(0, 24, uint64(r.Len))
	return w
}

func UnpackRecordHeader(w Word) RecordHeader {
	return RecordHeader{
		Date: uint32(w.Field(24, 24)),
		Len:  uint32(w.Field(0, 24)),
	}
}

// MaxRecordBytes is the largest payload a record header can describe.
const MaxRecordBytes = 1<<24 - 1

// DBDesc locates a database on the medium.
//
//	bits 20-25 logical unit
//	bits 10-19 start zone
//	bits 0-9   length in zones
type DBDesc uint32

// MaxDBLength is the historical upper bound on a database length in zones.
const MaxDBLength = 0o1731

func NewDBDesc(u primitives.Unit, start primitives.ZoneNumber, length int) DBDesc {
	return DBDesc(uint32(u)&0o77<<20 | uint32(start)&0o1777<<10 | uint32(length)&0o1777)
}

func (d DBDesc) Unit() primitives.Unit {
	return primitives.Unit(d >> 20 & 0o77)
}

func (d DBDesc) Start() primitives.ZoneNumber {
	return primitives.ZoneNumber(d >> 10 & 0o1777)
}

func (d DBDesc) Length() int {
	return int(d & 0o1777)
}

// Abs converts a zone number relative to d into an absolute zone.
func (d DBDesc) Abs(z primitives.ZoneNumber) primitives.AbsZone {
	return primitives.Abs(d.Unit(), d.Start(), z)
}

// Valid reports whether the descriptor names a usable zone range.
func (d DBDesc) Valid() bool {
	n := d.Length()
	return n >= 1 && n <= MaxDBLength && int(d.Start())+n <= primitives.MaxZones
}

// Key is the database validation key; its low 20 bits are zero.
func (d DBDesc) Key() Word {
	return Word(d) << 20
}

// ZoneKey is the expected word 0 of zone z.
func (d DBDesc) ZoneKey(z primitives.ZoneNumber) Word {
	return d.Key() | Word(z)
}

func (d DBDesc) String() string {
	return fmt.Sprintf("%d:%d+%d", d.Unit(), d.Start(), d.Length())
}
