package vm

import (
	"log/slog"
	"time"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/index/btree"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// Options tune record stamping and substore passwords.
type Options struct {
	// ZeroDate stores 0 instead of the day number in record headers.
	ZeroDate bool
	// PasswordCost is the bcrypt cost for substore passwords; 0 means the library default.
	PasswordCost int
	// Now is the clock used for record dates; nil means time.Now.
	Now func() time.Time
}

// Session is the state shared by successive programs: the zone cache, the allocator
// and index of the open database, the cursor, the stack of parent databases and the
// explicitly held lock.
type Session struct {
	cache  *zone.Cache
	alloc  *extent.Allocator
	tree   *btree.Tree
	cursor btree.Cursor

	bound   bool
	parents []word.DBDesc

	holds  bool
	heldDB word.DBDesc

	opts Options
	log  *slog.Logger
}

// NewSession creates a session over store. No database is open until Init or Open runs.
func NewSession(store zone.Store, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cache := zone.NewCache(store)
	alloc := extent.New(cache)
	return &Session{
		cache: cache,
		alloc: alloc,
		tree:  btree.New(alloc),
		opts:  opts,
		log:   logging.WithComponent("vm"),
	}
}

// DB returns the open database, zero when none is.
func (s *Session) DB() word.DBDesc {
	if !s.bound {
		return 0
	}
	return s.cache.DB()
}

// Depth is the number of substores entered below the database opened last.
func (s *Session) Depth() int {
	return len(s.parents)
}

// Holds reports whether the session holds an explicit lock.
func (s *Session) Holds() bool {
	return s.holds
}

func (s *Session) Allocator() *extent.Allocator {
	return s.alloc
}

func (s *Session) Tree() *btree.Tree {
	return s.tree
}

func (s *Session) Cursor() *btree.Cursor {
	return &s.cursor
}

// Cache exposes the zone cache, mainly for I/O statistics.
func (s *Session) Cache() *zone.Cache {
	return s.cache
}

// Close flushes the open database and closes the store.
func (s *Session) Close() error {
	if err := s.cache.Flush(); err != nil {
		_ = s.cache.Store().Close()
		return err
	}
	return s.cache.Store().Close()
}

func (s *Session) date() uint32 {
	if s.opts.ZeroDate {
		return 0
	}
	return extent.Days(s.opts.Now())
}

// attach binds the session to an existing database and checks its catalog.
func (s *Session) attach(db word.DBDesc) error {
	s.bound = false
	s.tree.Invalidate()
	s.cursor.Clear()
	if !db.Valid() {
		return dberror.Newf(dberror.KindBadCatalog, "invalid database descriptor %s", db)
	}
	if err := s.cache.Bind(db); err != nil {
		return err
	}
	s.alloc.Reset()
	if _, err := s.cache.OpenCatalog(); err != nil {
		return err
	}
	if err := s.alloc.Verify(); err != nil {
		return err
	}
	if err := s.tree.VerifyRoot(); err != nil {
		return err
	}
	s.bound = true
	return nil
}

// format initializes db and leaves the session bound to it.
func (s *Session) format(db word.DBDesc) error {
	s.bound = false
	s.tree.Invalidate()
	s.cursor.Clear()
	if err := s.alloc.Format(db, btree.RootImage()); err != nil {
		return err
	}
	s.bound = true
	return nil
}

// setLock writes the lock flag of db, switching databases temporarily if needed.
func (s *Session) setLock(db word.DBDesc, locked bool) error {
	cur := s.cache.DB()
	if db != cur {
		if err := s.cache.Bind(db); err != nil {
			return err
		}
		defer func() {
			_ = s.cache.Bind(cur)
			s.tree.Invalidate()
		}()
	}
	z, err := s.cache.Load(primitives.CatalogZone)
	if err != nil {
		return err
	}
	ctl := z.Control()
	ctl.Locked = locked
	z.SetControl(ctl)
	s.cache.MarkDirty(primitives.CatalogZone)
	return nil
}

func (s *Session) locked() (bool, error) {
	z, err := s.cache.Load(primitives.CatalogZone)
	if err != nil {
		return false, err
	}
	return z.Control().Locked, nil
}
