// Package vm runs the micro-programs that compose the allocator, the index and the
// zone cache into database operations.
//
// A Program is a list of instructions executed with an explicit program counter.
// Conditional instructions either succeed and fall through, or fail with their
// designated error; when the next instruction is a Mark and three more follow it,
// the failure skips the Mark and those three instead of aborting. Every evaluation
// ends with exactly one finalization that commits dirty zones and releases a lock
// taken by the program.
package vm

import (
	"fmt"

	dberror "zonedb/pkg/error"
)

// Op is a 6-bit opcode.
type Op uint8

const (
	OpNop Op = iota
	OpStop
	OpMark
	OpLoop
	OpSkip // arg: instructions to skip

	// index navigation
	OpFind
	OpMatch
	OpNoMatch
	OpFirst
	OpLast
	OpNext
	OpPrev

	// record lifecycle
	OpAlloc
	OpInsert
	OpUpdate
	OpFree
	OpDelKey
	OpLength

	// data transfer
	OpRead
	OpReadAt
	OpWriteAt
	OpCompare
	OpSeek
	OpScan

	// catalog navigation
	OpName
	OpEntry
	OpFormat
	OpEnter
	OpLeave

	// database lifecycle
	OpInit
	OpOpen
	OpSetRoot
	OpSave
	OpLock
	OpHold
	OpUnlock
	OpAvail

	// register plumbing
	OpConst // arg: register<<3 | constant index
	OpCopy  // arg: destination<<3 | source
	OpIncr  // arg: register

	opCount

	// OpChain continues the program in the next packed word.
	OpChain Op = 0o76
	// OpEnd pads the last packed word.
	OpEnd Op = 0o77
)

var opNames = map[Op]string{
	OpNop: "nop", OpStop: "stop", OpMark: "mark", OpLoop: "loop", OpSkip: "skip",
	OpFind: "find", OpMatch: "match", OpNoMatch: "nomatch",
	OpFirst: "first", OpLast: "last", OpNext: "next", OpPrev: "prev",
	OpAlloc: "alloc", OpInsert: "insert", OpUpdate: "update", OpFree: "free",
	OpDelKey: "delkey", OpLength: "length",
	OpRead: "read", OpReadAt: "readat", OpWriteAt: "writeat", OpCompare: "compare",
	OpSeek: "seek", OpScan: "scan",
	OpName: "name", OpEntry: "entry", OpFormat: "format", OpEnter: "enter", OpLeave: "leave",
	OpInit: "init", OpOpen: "open", OpSetRoot: "setroot", OpSave: "save",
	OpLock: "lock", OpHold: "hold", OpUnlock: "unlock", OpAvail: "avail",
	OpConst: "const", OpCopy: "copy", OpIncr: "incr",
	OpChain: "chain", OpEnd: "end",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op%02o", uint8(o))
}

// HasArg reports whether the instruction carries an operand slot.
func (o Op) HasArg() bool {
	switch o {
	case OpSkip, OpConst, OpCopy, OpIncr:
		return true
	}
	return false
}

// designated returns the failure a conditional instruction may turn into a skip.
func (o Op) designated() dberror.Kind {
	switch o {
	case OpMatch:
		return dberror.KindNoSuchName
	case OpNoMatch:
		return dberror.KindNameExists
	case OpCompare:
		return dberror.KindMismatch
	case OpSeek:
		return dberror.KindSeekOutOfBounds
	case OpFirst, OpNext:
		return dberror.KindNoNext
	case OpLast, OpPrev:
		return dberror.KindNoPrev
	case OpLock:
		return dberror.KindAlreadyLocked
	}
	return dberror.KindNone
}

// Instr is one decoded instruction.
type Instr struct {
	Op  Op
	Arg uint8
}

func (i Instr) String() string {
	if i.Op.HasArg() {
		return fmt.Sprintf("%s %o", i.Op, i.Arg)
	}
	return i.Op.String()
}

// Program is a sequence of instructions.
type Program []Instr

// Reg names a word register addressable by Const, Copy and Incr.
type Reg uint8

const (
	RegKey Reg = iota
	RegLen
	RegOff
	RegR0
	RegR1
	RegR2
	RegR3
	RegMark
)

// Consts is the constant table Const loads from.
var Consts = [8]uint64{0, 1, 2, 3, 6, 0o77, 0o377, 1<<47 - 1}

// I builds an instruction without operand.
func I(op Op) Instr {
	return Instr{Op: op}
}

// Skip jumps over the next n instructions.
func Skip(n int) Instr {
	return Instr{Op: OpSkip, Arg: uint8(n)}
}

// Const loads Consts[idx] into r.
func Const(r Reg, idx int) Instr {
	return Instr{Op: OpConst, Arg: uint8(r)<<3 | uint8(idx)&7}
}

// Copy copies register src into dst.
func Copy(dst, src Reg) Instr {
	return Instr{Op: OpCopy, Arg: uint8(dst)<<3 | uint8(src)&7}
}

// Incr adds one to r.
func Incr(r Reg) Instr {
	return Instr{Op: OpIncr, Arg: uint8(r)}
}
