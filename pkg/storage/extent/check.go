package extent

import (
	"sort"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/word"
)

// Report summarizes a consistency pass over every zone.
type Report struct {
	Zones    int
	Extents  int
	Used     int
	Free     int
	Overhead int
	Leaked   []word.Handle
}

// Check verifies every zone's accounting (extent words + free words + one word per
// descriptor equals the zone capacity), descriptor order, extent placement and the
// free table. When live is non-nil, every extent not reachable from a live chain
// head is reported as leaked.
func (a *Allocator) Check(live []word.Handle) (Report, error) {
	var r Report
	table, err := a.freeTable()
	if err != nil {
		return r, err
	}

	all := make(map[word.Handle]bool)
	for z := 0; z < a.cache.Zones(); z++ {
		zn, err := a.cache.Load(primitives.ZoneNumber(z))
		if err != nil {
			return r, err
		}
		c := zn.Control()
		descs := zn.Descriptors()

		used := 0
		var lastID primitives.ExtentID
		for _, d := range descs {
			if d.ID <= lastID {
				return r, dberror.Newf(dberror.KindInternal, "zone %d: descriptor ids out of order at %d", z, d.ID)
			}
			lastID = d.ID
			if d.Start < 2 || d.End() > int(c.Free) {
				return r, dberror.Newf(dberror.KindInternal, "zone %d: extent %d at %d+%d outside data area", z, d.ID, d.Start, d.Length)
			}
			used += int(d.Length)
			all[word.NewHandle(primitives.ZoneNumber(z), d.ID)] = true
		}

		byStart := append([]word.Descriptor(nil), descs...)
		sort.Slice(byStart, func(i, j int) bool { return byStart[i].Start < byStart[j].Start })
		at := 2
		for _, d := range byStart {
			if int(d.Start) != at {
				return r, dberror.Newf(dberror.KindInternal, "zone %d: gap or overlap at word %d", z, at)
			}
			at = d.End()
		}

		if used+c.FreeWords()+int(c.Count) != word.Capacity {
			return r, dberror.Newf(dberror.KindInternal, "zone %d: %d used + %d free + %d descriptors != %d",
				z, used, c.FreeWords(), c.Count, word.Capacity)
		}
		if table[z] != c.FreeWords() {
			return r, dberror.Newf(dberror.KindInternal, "zone %d: free table says %d, zone has %d", z, table[z], c.FreeWords())
		}

		r.Zones++
		r.Extents += len(descs)
		r.Used += used
		r.Free += c.FreeWords()
		r.Overhead += int(c.Count)
	}

	if live == nil {
		return r, nil
	}

	reached := make(map[word.Handle]bool, len(all))
	for _, h := range append([]word.Handle{RootHandle, FreeTableHandle}, live...) {
		segs, err := a.Segments(h)
		if err != nil {
			return r, err
		}
		for _, s := range segs {
			if reached[s] {
				return r, dberror.Newf(dberror.KindInternal, "extent %s reachable twice", s)
			}
			reached[s] = true
		}
	}
	for h := range all {
		if !reached[h] {
			r.Leaked = append(r.Leaked, h)
		}
	}
	if len(r.Leaked) > 0 {
		sort.Slice(r.Leaked, func(i, j int) bool { return r.Leaked[i] < r.Leaked[j] })
		return r, dberror.Newf(dberror.KindInternal, "%d leaked extents, first %s", len(r.Leaked), r.Leaked[0])
	}
	return r, nil
}
