package primitives

import "fmt"

// ZoneNumber is the position of a zone relative to the start of its database.
// Zone 0 is the catalog zone; all other zones hold data only.
type ZoneNumber uint16

// ExtentID identifies an extent within a single zone. Id 0 never addresses data.
type ExtentID uint16

// Unit is the logical unit (drive) a database lives on.
type Unit uint8

// AbsZone is the absolute zone number on the backing medium:
// unit*1024 + start + zone. Zone files are named after it.
type AbsZone uint32

// Sentinel values for invalid/unset identifiers
const (
	// CatalogZone is the zone that hosts the root metablock and the free table.
	CatalogZone ZoneNumber = 0

	// NoExtent is the reserved "no record" id.
	NoExtent ExtentID = 0

	// MaxZones is the number of addressable zones on one unit.
	MaxZones = 1024

	// MaxExtentID is the largest id representable in a handle.
	MaxExtentID ExtentID = 1<<9 - 1
)

// IsCatalog reports whether z is the catalog zone.
func (z ZoneNumber) IsCatalog() bool {
	return z == CatalogZone
}

// String returns a string representation of the ZoneNumber.
func (z ZoneNumber) String() string {
	return fmt.Sprintf("Zone(%d)", z)
}

// IsValid checks if the ExtentID can address data.
func (e ExtentID) IsValid() bool {
	return e != NoExtent && e <= MaxExtentID
}

// String returns a string representation of the ExtentID.
func (e ExtentID) String() string {
	return fmt.Sprintf("Extent(%d)", e)
}

// Abs computes the absolute zone number of zone z in a database starting at start on unit u.
func Abs(u Unit, start, z ZoneNumber) AbsZone {
	return AbsZone(uint32(u)*MaxZones + uint32(start) + uint32(z))
}

// Name renders the absolute zone number as a six digit octal numeral.
// This is the on-disk file name of the zone.
func (a AbsZone) Name() string {
	return fmt.Sprintf("%06o", uint32(a))
}
