package word

import (
	"fmt"
	"zonedb/pkg/primitives"
)

// Handle globally addresses an extent: bits 9-18 zone number, bits 0-8 extent id.
type Handle uint32

const (
	handleIDBits   = 9
	handleZoneBits = 10

	// HandleBits is the width of a packed handle.
	HandleBits = handleIDBits + handleZoneBits
)

// NoHandle is the null handle.
const NoHandle Handle = 0

// NewHandle packs a zone and extent id.
func NewHandle(z primitives.ZoneNumber, id primitives.ExtentID) Handle {
	return Handle(uint32(z)&(1<<handleZoneBits-1)<<handleIDBits | uint32(id)&(1<<handleIDBits-1))
}

// Zone returns the zone part of the handle.
func (h Handle) Zone() primitives.ZoneNumber {
	return primitives.ZoneNumber(h >> handleIDBits & (1<<handleZoneBits - 1))
}

// ID returns the extent id part of the handle.
func (h Handle) ID() primitives.ExtentID {
	return primitives.ExtentID(h & (1<<handleIDBits - 1))
}

// IsZero reports whether the handle addresses nothing (extent id 0).
func (h Handle) IsZero() bool {
	return h.ID() == primitives.NoExtent
}

func (h Handle) String() string {
	return fmt.Sprintf("{%d,%d}", h.Zone(), h.ID())
}
