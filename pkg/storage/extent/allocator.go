// Package extent manages variable-length extents inside zones.
//
// Each zone keeps its data contiguous from word 2 upward and an id-ordered
// descriptor array from word 1023 downward. Records that do not fit in one zone
// are split into a chain of extents linked through the descriptors' continuation
// field. A per-zone free-word table in zone 0 lets the allocator pick zones
// without reading them.
package extent

import (
	"log/slog"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// Fixed extents of zone 0.
var (
	RootHandle      = word.NewHandle(primitives.CatalogZone, 1)
	FreeTableHandle = word.NewHandle(primitives.CatalogZone, 2)
)

// Allocator places and reclaims extents through a zone cache.
type Allocator struct {
	cache   *zone.Cache
	current primitives.ZoneNumber
	log     *slog.Logger
}

// New creates an allocator over cache.
func New(cache *zone.Cache) *Allocator {
	return &Allocator{
		cache: cache,
		log:   logging.WithComponent("allocator"),
	}
}

// Cache returns the zone cache the allocator works through.
func (a *Allocator) Cache() *zone.Cache {
	return a.cache
}

// Reset forgets the current zone. Called after the cache is rebound.
func (a *Allocator) Reset() {
	a.current = 0
}

// Allocate stores words as one extent or a chain of extents and returns the head handle.
// If space runs out mid-split, the partial chain is freed before overflow is reported.
func (a *Allocator) Allocate(words []word.Word) (word.Handle, error) {
	if len(words) == 0 {
		return word.NoHandle, dberror.Newf(dberror.KindInternal, "empty extent")
	}

	h, built, err := a.allocate(words, word.NoHandle)
	if err != nil {
		if !built.IsZero() {
			if ferr := a.Free(built); ferr != nil {
				a.log.Warn("failed to free partial chain", "handle", built.String(), "error", ferr)
			}
		}
		return word.NoHandle, err
	}
	return h, nil
}

// allocate places words with continuation next. On failure it returns the head
// of whatever chain was built so the caller can release it.
func (a *Allocator) allocate(words []word.Word, next word.Handle) (word.Handle, word.Handle, error) {
	n := len(words)

	if n <= word.MaxExtent {
		fits, err := a.fits(a.current, n)
		if err != nil {
			return word.NoHandle, next, err
		}
		if fits {
			h, err := a.place(a.current, words, next)
			return h, next, err
		}

		for z := 0; z < a.cache.Zones(); z++ {
			fits, err := a.fits(primitives.ZoneNumber(z), n)
			if err != nil {
				return word.NoHandle, next, err
			}
			if fits {
				a.current = primitives.ZoneNumber(z)
				h, err := a.place(a.current, words, next)
				return h, next, err
			}
		}
	}

	// Split: the suffix goes to the tightest zone that can take anything,
	// the prefix keeps the header and looks for room elsewhere.
	z, free, err := a.leastFreeEligible()
	if err != nil {
		return word.NoHandle, next, err
	}
	if free < 2 {
		return word.NoHandle, next, dberror.Newf(dberror.KindOverflow, "no zone can hold %d more words", n)
	}

	take := min(n-1, free-1)
	suffix, err := a.place(z, words[n-take:], next)
	if err != nil {
		return word.NoHandle, next, err
	}
	a.log.Debug("extent split", "zone", int(z), "suffix", take, "remaining", n-take)

	return a.allocate(words[:n-take], suffix)
}

// fits reports whether n words plus a descriptor fit in zone z without loading data zones.
func (a *Allocator) fits(z primitives.ZoneNumber, n int) (bool, error) {
	free, err := a.FreeWords(z)
	if err != nil {
		return false, err
	}
	return free >= n+1, nil
}

// leastFreeEligible returns the zone with the fewest free words among those
// with at least 2, lowest zone number on ties.
func (a *Allocator) leastFreeEligible() (primitives.ZoneNumber, int, error) {
	table, err := a.freeTable()
	if err != nil {
		return 0, 0, err
	}
	best, bestFree := primitives.ZoneNumber(0), 0
	for z, free := range table {
		if free < 2 {
			continue
		}
		if bestFree == 0 || free < bestFree {
			best, bestFree = primitives.ZoneNumber(z), free
		}
	}
	return best, bestFree, nil
}

// place appends an extent at the start of zone z's free area.
func (a *Allocator) place(z primitives.ZoneNumber, words []word.Word, next word.Handle) (word.Handle, error) {
	zn, err := a.cache.Load(z)
	if err != nil {
		return word.NoHandle, err
	}
	id, err := placeIn(zn, words, next)
	if err != nil {
		return word.NoHandle, dberror.Within(err, "Allocate", "Allocator")
	}
	a.cache.MarkDirty(z)

	if err := a.setFree(z, zn.Control().FreeWords()); err != nil {
		return word.NoHandle, err
	}
	return word.NewHandle(z, id), nil
}

// placeIn writes words into zn's free area and inserts their descriptor in id order.
func placeIn(zn *zone.Zone, words []word.Word, next word.Handle) (primitives.ExtentID, error) {
	c := zn.Control()
	if c.FreeWords() < len(words)+1 {
		return primitives.NoExtent, dberror.Newf(dberror.KindInternal, "%d free words, need %d", c.FreeWords(), len(words)+1)
	}

	id, idx := newID(zn)
	if id == primitives.NoExtent {
		return primitives.NoExtent, dberror.Newf(dberror.KindOverflow, "extent ids exhausted")
	}

	copy(zn[c.Free:], words)
	for i := int(c.Count) - 1; i >= idx; i-- {
		zn[zone.DescriptorSlot(i+1)] = zn[zone.DescriptorSlot(i)]
	}
	zn.SetDescriptor(idx, word.Descriptor{
		Start:  c.Free,
		Length: uint16(len(words)),
		Next:   next,
		ID:     id,
	})
	c.Free += uint16(len(words))
	c.Count++
	zn.SetControl(c)
	return id, nil
}

// newID picks the next extent id (last+1, or the lowest gap once ids run out)
// and the descriptor index it must be inserted at.
func newID(zn *zone.Zone) (primitives.ExtentID, int) {
	count := int(zn.Control().Count)
	if count == 0 {
		return 1, 0
	}
	if last := zn.Descriptor(count - 1).ID; last < primitives.MaxExtentID {
		return last + 1, count
	}
	for i := 0; i < count; i++ {
		want := primitives.ExtentID(i + 1)
		if zn.Descriptor(i).ID != want {
			return want, i
		}
	}
	return primitives.NoExtent, 0
}

// locate finds the descriptor index of id, scanning from the tail.
func locate(zn *zone.Zone, id primitives.ExtentID) int {
	for i := int(zn.Control().Count) - 1; i >= 0; i-- {
		d := zn.Descriptor(i)
		if d.ID == id {
			return i
		}
		if d.ID < id {
			break
		}
	}
	return -1
}

// head rejects the null handle as the start of a chain.
func head(h word.Handle) error {
	if h.IsZero() {
		return dberror.Newf(dberror.KindZeroKey, "handle %s", h)
	}
	return nil
}

// descriptor loads h's zone and returns it with h's descriptor.
func (a *Allocator) descriptor(h word.Handle) (*zone.Zone, int, word.Descriptor, error) {
	if h.IsZero() {
		return nil, 0, word.Descriptor{}, dberror.Newf(dberror.KindZeroKey, "handle %s", h)
	}
	if int(h.Zone()) >= a.cache.Zones() {
		return nil, 0, word.Descriptor{}, dberror.Newf(dberror.KindNoSuchRecord, "handle %s outside database", h)
	}
	zn, err := a.cache.Load(h.Zone())
	if err != nil {
		return nil, 0, word.Descriptor{}, err
	}
	idx := locate(zn, h.ID())
	if idx < 0 {
		return nil, 0, word.Descriptor{}, dberror.Newf(dberror.KindNoSuchRecord, "handle %s", h)
	}
	d := zn.Descriptor(idx)
	if d.End() > int(zn.Control().Free) || d.Start < zone.DataStart {
		return nil, 0, word.Descriptor{}, dberror.Newf(dberror.KindInternal, "handle %s: extent %d+%d outside data area", h, d.Start, d.Length)
	}
	return zn, idx, d, nil
}

// Free releases the extent at h and every extent chained after it.
// The zone's data area is compacted so its free space stays contiguous.
func (a *Allocator) Free(h word.Handle) error {
	if err := head(h); err != nil {
		return err
	}
	for !h.IsZero() {
		zn, idx, d, err := a.descriptor(h)
		if err != nil {
			return err
		}
		c := zn.Control()

		for i := idx; i < int(c.Count)-1; i++ {
			zn[zone.DescriptorSlot(i)] = zn[zone.DescriptorSlot(i+1)]
		}
		zn[zone.DescriptorSlot(int(c.Count)-1)] = 0

		copy(zn[d.Start:], zn[d.End():c.Free])
		clear(zn[c.Free-d.Length : c.Free])

		c.Count--
		c.Free -= d.Length
		for i := 0; i < int(c.Count); i++ {
			other := zn.Descriptor(i)
			if other.Start > d.Start {
				other.Start -= d.Length
				zn.SetDescriptor(i, other)
			}
		}
		zn.SetControl(c)
		a.cache.MarkDirty(h.Zone())

		if err := a.setFree(h.Zone(), c.FreeWords()); err != nil {
			return err
		}
		h = d.Next
	}
	return nil
}

// Read returns the full contents of the chain starting at h.
func (a *Allocator) Read(h word.Handle) ([]word.Word, error) {
	if err := head(h); err != nil {
		return nil, err
	}
	var out []word.Word
	for !h.IsZero() {
		zn, _, d, err := a.descriptor(h)
		if err != nil {
			return nil, err
		}
		out = append(out, zn[d.Start:d.End()]...)
		h = d.Next
	}
	return out, nil
}

// First returns the first word of the extent at h (its header word).
func (a *Allocator) First(h word.Handle) (word.Word, error) {
	zn, _, d, err := a.descriptor(h)
	if err != nil {
		return 0, err
	}
	if d.Length == 0 {
		return 0, dberror.Newf(dberror.KindInternal, "handle %s: empty extent", h)
	}
	return zn[d.Start], nil
}

// Length returns the total number of words in the chain at h.
func (a *Allocator) Length(h word.Handle) (int, error) {
	if err := head(h); err != nil {
		return 0, err
	}
	n := 0
	for !h.IsZero() {
		_, _, d, err := a.descriptor(h)
		if err != nil {
			return 0, err
		}
		n += int(d.Length)
		h = d.Next
	}
	return n, nil
}

// Write overwrites the chain at h starting at word offset off.
// Writing past the end of the chain is a seek error.
func (a *Allocator) Write(h word.Handle, off int, words []word.Word) error {
	if err := head(h); err != nil {
		return err
	}
	pos := 0
	for !h.IsZero() && len(words) > 0 {
		zn, _, d, err := a.descriptor(h)
		if err != nil {
			return err
		}
		segEnd := pos + int(d.Length)
		if off < segEnd {
			from := max(off-pos, 0)
			n := copy(zn[int(d.Start)+from:d.End()], words)
			words = words[n:]
			off += n
			a.cache.MarkDirty(h.Zone())
		}
		pos = segEnd
		h = d.Next
	}
	if len(words) > 0 {
		return dberror.Newf(dberror.KindSeekOutOfBounds, "write of %d words past end of extent", len(words))
	}
	return nil
}

// Segments lists the extents of the chain at h in traversal order.
func (a *Allocator) Segments(h word.Handle) ([]word.Handle, error) {
	if err := head(h); err != nil {
		return nil, err
	}
	var out []word.Handle
	for !h.IsZero() {
		_, _, d, err := a.descriptor(h)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
		h = d.Next
	}
	return out, nil
}
