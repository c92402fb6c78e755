package vm

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

const (
	slotBits     = 6
	slotsPerWord = word.Bits / slotBits
	chainSlot    = slotsPerWord - 1
)

func slotShift(slot int) uint {
	return uint(word.Bits - slotBits*(slot+1))
}

// Pack encodes p eight 6-bit slots per word, first slot in the high bits. An operand
// occupies the slot after its opcode and never straddles words. The last slot of a
// word is reserved for Chain; unused slots before a Chain are filled with Chain,
// and the tail of the final word with End.
func (p Program) Pack() ([]word.Word, error) {
	var out []word.Word
	var cur word.Word
	slot := 0

	put := func(v uint8) {
		cur = cur.With(slotShift(slot), slotBits, uint64(v))
		slot++
	}

	for _, in := range p {
		if in.Op >= opCount || in.Arg >= 1<<slotBits {
			return nil, dberror.Newf(dberror.KindInternal, "instruction %s cannot be packed", in)
		}
		need := 1
		if in.Op.HasArg() {
			need = 2
		}
		if slot+need > chainSlot {
			for slot < slotsPerWord {
				put(uint8(OpChain))
			}
			out = append(out, cur)
			cur, slot = 0, 0
		}
		put(uint8(in.Op))
		if in.Op.HasArg() {
			put(in.Arg)
		}
	}
	for slot < slotsPerWord {
		put(uint8(OpEnd))
	}
	return append(out, cur), nil
}

// Unpack decodes words produced by Pack.
func Unpack(words []word.Word) (Program, error) {
	var p Program
	for i := 0; i < len(words); i++ {
		w := words[i]
		chained := false
		for slot := 0; slot < slotsPerWord; slot++ {
			op := Op(w.Field(slotShift(slot), slotBits))
			switch {
			case op == OpChain:
				chained = true
			case op == OpEnd:
				return p, nil
			case op >= opCount:
				return nil, dberror.Newf(dberror.KindInternal, "word %d slot %d: unknown opcode %o", i, slot, uint8(op))
			case op.HasArg():
				if slot+1 >= slotsPerWord {
					return nil, dberror.Newf(dberror.KindInternal, "word %d: operand of %s missing", i, op)
				}
				slot++
				p = append(p, Instr{Op: op, Arg: uint8(w.Field(slotShift(slot), slotBits))})
			default:
				p = append(p, Instr{Op: op})
			}
			if chained {
				break
			}
		}
		if !chained {
			return nil, dberror.Newf(dberror.KindInternal, "word %d: program neither ends nor chains", i)
		}
	}
	return nil, dberror.Newf(dberror.KindInternal, "program chains past its last word")
}
