package extent

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// The free table is the extent at FreeTableHandle. Its first word holds the zone
// count; then each word packs four 12-bit free-word counts, zone 0 in the high bits.
const (
	freePerWord = 4
	freeBits    = 12
)

// FreeTableWords is the size of the free table for a database of n zones.
func FreeTableWords(n int) int {
	return 1 + (n+freePerWord-1)/freePerWord
}

func freeShift(z int) uint {
	return uint(freePerWord-1-z%freePerWord) * freeBits
}

// tableSlot returns the catalog zone and the word index of zone z's free-table entry.
func (a *Allocator) tableSlot(z primitives.ZoneNumber) (*zone.Zone, int, error) {
	zn, _, d, err := a.descriptor(FreeTableHandle)
	if err != nil {
		return nil, 0, err
	}
	slot := 1 + int(z)/freePerWord
	if slot >= int(d.Length) {
		return nil, 0, dberror.Newf(dberror.KindInternal, "zone %d beyond free table", z)
	}
	return zn, int(d.Start) + slot, nil
}

// FreeWords returns the recorded free-word count of zone z.
func (a *Allocator) FreeWords(z primitives.ZoneNumber) (int, error) {
	if int(z) >= a.cache.Zones() {
		return 0, nil
	}
	zn, i, err := a.tableSlot(z)
	if err != nil {
		return 0, err
	}
	return int(zn[i].Field(freeShift(int(z)), freeBits)), nil
}

func (a *Allocator) setFree(z primitives.ZoneNumber, free int) error {
	zn, i, err := a.tableSlot(z)
	if err != nil {
		return err
	}
	zn[i] = zn[i].With(freeShift(int(z)), freeBits, uint64(free))
	a.cache.MarkDirty(primitives.CatalogZone)
	return nil
}

// freeTable returns the free-word count of every zone.
func (a *Allocator) freeTable() ([]int, error) {
	words, err := a.Read(FreeTableHandle)
	if err != nil {
		return nil, err
	}
	return DecodeFreeTable(words, a.cache.Zones()), nil
}

// DecodeFreeTable unpacks the free-word counts of n zones from a free table image.
func DecodeFreeTable(words []word.Word, n int) []int {
	out := make([]int, n)
	for z := range out {
		slot := 1 + z/freePerWord
		if slot < len(words) {
			out[z] = int(words[slot].Field(freeShift(z), freeBits))
		}
	}
	return out
}

func encodeFreeTable(free []int) []word.Word {
	out := make([]word.Word, FreeTableWords(len(free)))
	out[0] = word.Word(len(free))
	for z, n := range free {
		slot := 1 + z/freePerWord
		out[slot] = out[slot].With(freeShift(z), freeBits, uint64(n))
	}
	return out
}

// FreeTable returns the recorded free-word count of every zone.
func (a *Allocator) FreeTable() ([]int, error) {
	return a.freeTable()
}

// Avail returns the words available to new records: for every zone, its free
// words less the one word a new descriptor would take.
func (a *Allocator) Avail() (int, error) {
	table, err := a.freeTable()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, free := range table {
		total += max(free-1, 0)
	}
	return total, nil
}

// Verify checks that the free table describes the bound database.
func (a *Allocator) Verify() error {
	hdr, err := a.First(FreeTableHandle)
	if err != nil {
		return dberror.Newf(dberror.KindBadCatalog, "free table: %v", err)
	}
	if int(hdr) != a.cache.Zones() {
		return dberror.Newf(dberror.KindBadCatalog, "free table covers %d zones, database has %d", hdr, a.cache.Zones())
	}
	return nil
}
