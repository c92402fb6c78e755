package vm

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// Registers is the operand state a program reads and writes. The caller fills the
// inputs, runs a program and reads the outputs back.
type Registers struct {
	// Key is the target key. Navigation stores the key it lands on.
	Key word.Word
	// Found is the key of the element Find landed on, zero on a miss.
	Found word.Word

	// Data is the caller's buffer: the source of Alloc/Update/WriteAt/Compare and
	// the destination of Read/ReadAt.
	Data []byte
	// Len is a byte count: the payload length going in, the record length coming out.
	Len int
	// Off is a byte offset inside the current record.
	Off int
	// Mark is the terminator byte Scan looks for.
	Mark byte

	// Cur is the record handle of the current element.
	Cur word.Handle
	// Pending is a record allocated but not yet indexed.
	Pending word.Handle

	// Desc is the database operand of Init, Open and Format.
	Desc     word.DBDesc
	Name     string
	Password string

	R [4]word.Word
}

func (r *Registers) get(reg Reg) word.Word {
	switch reg {
	case RegKey:
		return r.Key
	case RegLen:
		return word.Word(r.Len)
	case RegOff:
		return word.Word(r.Off)
	case RegMark:
		return word.Word(r.Mark)
	default:
		return r.R[reg-RegR0]
	}
}

func (r *Registers) set(reg Reg, v word.Word) {
	v &= word.Mask
	switch reg {
	case RegKey:
		r.Key = v
	case RegLen:
		r.Len = int(v)
	case RegOff:
		r.Off = int(v)
	case RegMark:
		r.Mark = byte(v)
	default:
		r.R[reg-RegR0] = v
	}
}

// payload is the byte range an allocating or writing instruction stores.
func (r *Registers) payload() ([]byte, error) {
	if r.Len < 0 || r.Len > len(r.Data) {
		return nil, dberror.Newf(dberror.KindSeekOutOfBounds, "length %d outside a %d byte buffer", r.Len, len(r.Data))
	}
	return r.Data[:r.Len], nil
}

// window checks that Len bytes at Off lie inside a record of n bytes.
func (r *Registers) window(n int) error {
	if r.Off < 0 || r.Len < 0 || r.Off+r.Len > n {
		return dberror.Newf(dberror.KindSeekOutOfBounds, "bytes [%d,%d) of a %d byte record", r.Off, r.Off+r.Len, n)
	}
	return nil
}
