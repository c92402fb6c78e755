// Package zone holds the fixed-size unit of I/O and the two-buffer cache in front of it.
package zone

import (
	"fmt"
	"zonedb/pkg/word"
)

const (
	// Size is the on-disk size of a zone in bytes.
	Size = word.ZoneWords * word.Bytes

	// ControlWord is the index of the control word.
	ControlWord = 1

	// DataStart is the first word available to extents.
	DataStart = word.HeaderWords
)

// Zone is 1024 words. Word 0 is the validation key, word 1 the control word;
// extent data grows up from word 2 and the descriptor array grows down from word 1023.
type Zone [word.ZoneWords]word.Word

// Sentinel returns the image of a zone that was never written.
func Sentinel() *Zone {
	z := new(Zone)
	for i := range z {
		z[i] = word.Sentinel
	}
	return z
}

// Empty returns a formatted zone with no extents and the given validation key.
func Empty(key word.Word) *Zone {
	z := new(Zone)
	z[0] = key
	z.SetControl(word.Control{Free: DataStart})
	return z
}

func (z *Zone) Header() word.Word {
	return z[0]
}

func (z *Zone) Control() word.Control {
	return word.UnpackControl(z[ControlWord])
}

func (z *Zone) SetControl(c word.Control) {
	z[ControlWord] = c.Pack()
}

// DescriptorSlot returns the word index of descriptor i.
func DescriptorSlot(i int) int {
	return word.ZoneWords - 1 - i
}

// Descriptor returns descriptor i (0 is the lowest id).
func (z *Zone) Descriptor(i int) word.Descriptor {
	return word.UnpackDescriptor(z[DescriptorSlot(i)])
}

func (z *Zone) SetDescriptor(i int, d word.Descriptor) {
	z[DescriptorSlot(i)] = d.Pack()
}

// Descriptors returns all live descriptors in id order.
func (z *Zone) Descriptors() []word.Descriptor {
	c := z.Control()
	out := make([]word.Descriptor, c.Count)
	for i := range out {
		out[i] = z.Descriptor(i)
	}
	return out
}

// Clone returns an independent copy.
func (z *Zone) Clone() *Zone {
	c := *z
	return &c
}

// Encode serializes the zone as 6-byte big-endian words.
func (z *Zone) Encode() []byte {
	out := make([]byte, Size)
	for i, w := range z {
		w.Encode(out[i*word.Bytes:])
	}
	return out
}

// Decode parses a zone image produced by Encode.
func Decode(data []byte) (*Zone, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("invalid zone size: expected %d, got %d", Size, len(data))
	}
	z := new(Zone)
	for i := range z {
		z[i] = word.Decode(data[i*word.Bytes:])
	}
	return z, nil
}
