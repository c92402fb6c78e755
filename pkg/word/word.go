// Package word defines the 48-bit storage word and the bit layouts packed into it.
//
// Every on-disk structure (zone header, control word, extent descriptor,
// metablock header, index element, record header, database descriptor) has a
// pack/unpack pair here. Nothing else in the module shifts bits around.
package word

import "encoding/binary"

// Word is a 48-bit unsigned value; the upper 16 bits of the uint64 are always zero.
type Word uint64

const (
	// Bits is the width of a storage word.
	Bits = 48

	// Bytes is the number of bytes a word occupies on disk and in a record payload.
	Bytes = 6

	// Mask keeps the low 48 bits.
	Mask Word = 1<<Bits - 1

	// Sentinel is the pattern of a zone that was never written.
	Sentinel Word = 0o7777777777777777

	// ZoneWords is the number of words in a zone.
	ZoneWords = 1024

	// HeaderWords is the per-zone overhead: validation key and control word.
	HeaderWords = 2

	// Capacity is the number of words available to extents and their descriptors.
	Capacity = ZoneWords - HeaderWords

	// MaxExtent is the longest extent a single zone can hold (one word goes to its descriptor).
	MaxExtent = Capacity - 1

	// KeyMask covers the valid key range; bit 47 is reserved.
	KeyMask Word = 1<<47 - 1
)

// Field extracts width bits starting at shift.
func (w Word) Field(shift, width uint) uint64 {
	return uint64(w>>shift) & (1<<width - 1)
}

// With returns w with width bits at shift replaced by v.
func (w Word) With(shift, width uint, v uint64) Word {
	m := Word(1<<width-1) << shift
	return (w &^ m) | (Word(v)<<shift)&m
}

// Bit reports whether bit n is set.
func (w Word) Bit(n uint) bool {
	return w>>n&1 == 1
}

// ValidKey reports whether k may be used as a record key: non-zero with the top bit clear.
func ValidKey(k Word) bool {
	return k != 0 && k&^KeyMask == 0
}

// Encode writes w as 6 big-endian bytes into dst.
func (w Word) Encode(dst []byte) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(w&Mask))
	copy(dst[:Bytes], b[2:])
}

// Decode reads a word from 6 big-endian bytes.
func Decode(src []byte) Word {
	var b [8]byte
	copy(b[2:], src[:Bytes])
	return Word(binary.BigEndian.Uint64(b[:]))
}

// WordsFor returns how many words are needed to hold n payload bytes.
func WordsFor(n int) int {
	return (n + Bytes - 1) / Bytes
}

// FromBytes packs b six bytes per word, zero padding the last word.
func FromBytes(b []byte) []Word {
	out := make([]Word, WordsFor(len(b)))
	var buf [Bytes]byte
	for i := range out {
		clear(buf[:])
		copy(buf[:], b[i*Bytes:])
		out[i] = Decode(buf[:])
	}
	return out
}

// ToBytes unpacks the first n bytes held in ws.
func ToBytes(ws []Word, n int) []byte {
	out := make([]byte, len(ws)*Bytes)
	for i, w := range ws {
		w.Encode(out[i*Bytes:])
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}
