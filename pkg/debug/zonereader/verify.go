package zonereader

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/index/btree"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// Verify checks every zone header and extent layout, the reserved root metablock
// and the free table. The first inconsistency found is returned.
func (s *Snapshot) Verify() error {
	for _, z := range s.Zones {
		if err := s.verifyZone(z); err != nil {
			return err
		}
	}
	return s.verifyCatalog()
}

func (s *Snapshot) verifyZone(z ZoneInfo) error {
	if want := s.DB.ZoneKey(z.Number); z.Header != want {
		return dberror.Newf(dberror.KindPageCorrupted, "zone %s: header %o, want %o", z.File, z.Header, want)
	}
	c := z.Control
	if int(c.Free) < zone.DataStart || int(c.Free)+int(c.Count) > word.ZoneWords {
		return dberror.Newf(dberror.KindPageCorrupted, "zone %s: free start %d with %d extents", z.File, c.Free, c.Count)
	}

	next := zone.DataStart
	for i, d := range z.Extents {
		if i > 0 && d.ID <= z.Extents[i-1].ID {
			return dberror.Newf(dberror.KindPageCorrupted, "zone %s: extent ids out of order at slot %d", z.File, i)
		}
		if int(d.Start) != next || d.End() > int(c.Free) {
			return dberror.Newf(dberror.KindPageCorrupted, "zone %s: extent %d at [%d,%d) breaks the data area",
				z.File, d.ID, d.Start, d.End())
		}
		next = d.End()
	}
	if next != int(c.Free) {
		return dberror.Newf(dberror.KindPageCorrupted, "zone %s: extents end at %d, free area starts at %d", z.File, next, c.Free)
	}
	return nil
}

// verifyCatalog checks the two reserved extents of zone 0.
func (s *Snapshot) verifyCatalog() error {
	root, err := s.Read(extent.RootHandle)
	if err != nil {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock: %v", err)
	}
	if len(root) != btree.NodeWords(btree.RootCap) {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock holds %d words", len(root))
	}
	hdr := word.UnpackMetaHeader(root[0])
	if hdr.Prev != word.NoHandle || hdr.Next != word.NoHandle {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock links %s/%s", hdr.Prev, hdr.Next)
	}
	if _, err := btree.DecodeNode(extent.RootHandle, root); err != nil {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock: %v", err)
	}

	table, err := s.Read(extent.FreeTableHandle)
	if err != nil {
		return dberror.Newf(dberror.KindBadCatalog, "free table: %v", err)
	}
	if len(table) == 0 || int(table[0]) != len(s.Zones) {
		return dberror.Newf(dberror.KindBadCatalog, "free table of %d words does not cover %d zones", len(table), len(s.Zones))
	}
	for i, free := range extent.DecodeFreeTable(table, len(s.Zones)) {
		if got := s.Zones[i].Control.FreeWords(); got != free {
			return dberror.Newf(dberror.KindBadCatalog, "zone %s: free table says %d words, zone has %d",
				primitives.ZoneNumber(i), free, got)
		}
	}
	return nil
}

// FreeTable returns the recorded free-word count of every zone.
func (s *Snapshot) FreeTable() ([]int, error) {
	table, err := s.Read(extent.FreeTableHandle)
	if err != nil {
		return nil, err
	}
	return extent.DecodeFreeTable(table, len(s.Zones)), nil
}
