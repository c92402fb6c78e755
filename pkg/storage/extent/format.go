package extent

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// Format writes an empty database over db's zone range and leaves the cache bound to it.
// Every zone gets its validation key; zone 0 additionally gets the root metablock
// (extent id 1, contents root) and the free table (extent id 2).
func (a *Allocator) Format(db word.DBDesc, root []word.Word) error {
	if !db.Valid() {
		return dberror.Newf(dberror.KindBadCatalog, "invalid database descriptor %s", db)
	}
	n := db.Length()
	if len(root)+FreeTableWords(n)+2 > word.Capacity {
		return dberror.Newf(dberror.KindOverflow, "catalog zone cannot hold %d zones", n)
	}

	if err := a.cache.Bind(db); err != nil {
		return err
	}
	a.Reset()

	for z := n - 1; z >= 1; z-- {
		zn := primitives.ZoneNumber(z)
		if err := a.cache.Install(zn, zone.Empty(db.ZoneKey(zn))); err != nil {
			return err
		}
	}

	cat := zone.Empty(db.ZoneKey(primitives.CatalogZone))
	if _, err := placeIn(cat, root, word.NoHandle); err != nil {
		return err
	}
	if _, err := placeIn(cat, make([]word.Word, FreeTableWords(n)), word.NoHandle); err != nil {
		return err
	}

	free := make([]int, n)
	for z := range free {
		free[z] = word.Capacity
	}
	free[0] = cat.Control().FreeWords()
	table := encodeFreeTable(free)
	copy(cat[cat.Descriptor(1).Start:], table)

	if err := a.cache.Install(primitives.CatalogZone, cat); err != nil {
		return err
	}
	a.log.Info("database formatted", "db", db.String(), "zones", n)
	return a.cache.Flush()
}
