package zone

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/word"
)

// buffer is one resident zone slot.
type buffer struct {
	zone   primitives.ZoneNumber
	data   *Zone
	dirty  bool
	loaded bool
}

// Cache keeps exactly two zones resident: the catalog buffer, always bound to
// zone 0, and one rotating data buffer for every other zone.
//
// A pointer returned by Load stays valid only until the next Load of a different
// data zone; callers re-load instead of holding zones across calls.
type Cache struct {
	store   Store
	db      word.DBDesc
	catalog buffer
	data    buffer

	reads  int
	writes int
}

// NewCache creates a cache over store. Bind must be called before Load.
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Store returns the backing store.
func (c *Cache) Store() Store {
	return c.store
}

// DB returns the database the cache is bound to.
func (c *Cache) DB() word.DBDesc {
	return c.db
}

// Zones returns the number of zones of the bound database.
func (c *Cache) Zones() int {
	return c.db.Length()
}

// Bind flushes the current database and switches to db. Nothing is read yet.
func (c *Cache) Bind(db word.DBDesc) error {
	if err := c.Flush(); err != nil {
		return err
	}
	c.db = db
	c.catalog = buffer{}
	c.data = buffer{}
	return nil
}

// OpenCatalog loads zone 0 and checks its validation key. A mismatch means the
// descriptor does not name a database and is reported as a bad catalog.
func (c *Cache) OpenCatalog() (*Zone, error) {
	z, err := c.read(primitives.CatalogZone)
	if err != nil {
		return nil, err
	}
	if z.Header() != c.db.ZoneKey(primitives.CatalogZone) {
		return nil, dberror.Newf(dberror.KindBadCatalog, "database %s: catalog key %o", c.db, z.Header())
	}
	c.catalog = buffer{zone: primitives.CatalogZone, data: z, loaded: true}
	return z, nil
}

// Load makes zone z resident and returns it. Loading the resident zone is a no-op;
// loading another data zone writes back the current one first if it is dirty.
func (c *Cache) Load(z primitives.ZoneNumber) (*Zone, error) {
	if int(z) >= c.db.Length() {
		return nil, dberror.Newf(dberror.KindInternal, "zone %d outside database %s", z, c.db)
	}

	slot := c.slot(z)
	if slot.loaded && slot.zone == z {
		return slot.data, nil
	}

	if err := c.writeBack(slot); err != nil {
		return nil, err
	}

	data, err := c.read(z)
	if err != nil {
		return nil, err
	}
	if data.Header() != c.db.ZoneKey(z) {
		return nil, dberror.Newf(dberror.KindPageCorrupted, "zone %d: header %o, want %o", z, data.Header(), c.db.ZoneKey(z))
	}

	*slot = buffer{zone: z, data: data, loaded: true}
	return data, nil
}

// Install makes a freshly built zone resident and dirty without reading the store.
// Formatting uses it to create zones.
func (c *Cache) Install(z primitives.ZoneNumber, data *Zone) error {
	slot := c.slot(z)
	if !(slot.loaded && slot.zone == z) {
		if err := c.writeBack(slot); err != nil {
			return err
		}
	}
	*slot = buffer{zone: z, data: data, loaded: true, dirty: true}
	return nil
}

// MarkDirty flags the buffer holding zone z for write-back.
func (c *Cache) MarkDirty(z primitives.ZoneNumber) {
	slot := c.slot(z)
	if slot.loaded && slot.zone == z {
		slot.dirty = true
	}
}

// Flush writes back dirty buffers, catalog first, then data.
func (c *Cache) Flush() error {
	if err := c.writeBack(&c.catalog); err != nil {
		return err
	}
	return c.writeBack(&c.data)
}

// Stats returns the number of zone reads and write-backs since creation.
func (c *Cache) Stats() (reads, writes int) {
	return c.reads, c.writes
}

func (c *Cache) slot(z primitives.ZoneNumber) *buffer {
	if z.IsCatalog() {
		return &c.catalog
	}
	return &c.data
}

func (c *Cache) read(z primitives.ZoneNumber) (*Zone, error) {
	abs := c.db.Abs(z)
	data, err := c.store.ReadZone(abs)
	if err != nil {
		return nil, dberror.IOError(err, "ReadZone", "ZoneCache")
	}
	c.reads++
	logging.WithZone(abs.Name()).Debug("zone loaded", "db", c.db.String())
	return data, nil
}

func (c *Cache) writeBack(b *buffer) error {
	if !b.loaded || !b.dirty {
		return nil
	}
	abs := c.db.Abs(b.zone)
	if err := c.store.WriteZone(abs, b.data); err != nil {
		return dberror.IOError(err, "WriteZone", "ZoneCache")
	}
	c.writes++
	b.dirty = false
	logging.WithZone(abs.Name()).Debug("zone written", "db", c.db.String())
	return nil
}
