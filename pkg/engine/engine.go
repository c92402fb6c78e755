// Package engine is the public surface of the zone database. Each operation fills
// the registers of a session, runs one of the fixed programs of package vm and
// reads the result back, so every call commits its dirty zones and releases any
// lock it took before returning.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"zonedb/pkg/config"
	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/vm"
	"zonedb/pkg/word"
)

// Key addresses a record. Valid keys are non-zero and below 2^47.
type Key = word.Word

// Direction selects the order Clear deletes in.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Options tune record dates and substore passwords.
type Options struct {
	ZeroDate     bool
	PasswordCost int
	Now          func() time.Time
}

// Store is one session over a zone store. Its methods serialize on a mutex; the
// engine itself never runs anything concurrently.
type Store struct {
	mutex   sync.Mutex
	session *vm.Session
	log     *slog.Logger
}

// New creates a store over zones. Init or OpenDB must run before anything else.
func New(zones zone.Store, opts Options) *Store {
	return &Store{
		session: vm.NewSession(zones, vm.Options{
			ZeroDate:     opts.ZeroDate,
			PasswordCost: opts.PasswordCost,
			Now:          opts.Now,
		}),
		log: logging.WithComponent("engine"),
	}
}

// Open creates a store over the zone directory of cfg. The database itself is not
// opened; call OpenDB or Init with cfg.DBDesc().
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zones, err := zone.NewDirStore(primitives.Filepath(cfg.DataDir))
	if err != nil {
		return nil, dberror.IOError(err, "Open", "Engine")
	}
	return New(zones, Options{ZeroDate: cfg.ZeroDate, PasswordCost: cfg.PasswordCost}), nil
}

func (s *Store) eval(name string, prog vm.Program, r *vm.Registers) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.session.Eval(name, prog, r)
}

// DB returns the database currently open, zero if none.
func (s *Store) DB() word.DBDesc {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.session.DB()
}

// Depth is the number of substores entered.
func (s *Store) Depth() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.session.Depth()
}

// Init formats the zones of db as an empty database and opens it.
func (s *Store) Init(db word.DBDesc) error {
	if err := s.eval("init", vm.InitProgram, &vm.Registers{Desc: db}); err != nil {
		return err
	}
	logging.WithDB(db.String()).Info("database initialized", "zones", db.Length())
	return nil
}

// OpenDB opens an existing database.
func (s *Store) OpenDB(db word.DBDesc) error {
	if err := s.eval("open", vm.OpenProgram, &vm.Registers{Desc: db}); err != nil {
		return err
	}
	logging.WithDB(db.String()).Debug("database opened")
	return nil
}

// CreateSubstore formats db as a substore of the open database and registers it
// under name. An empty password creates an unprotected substore.
func (s *Store) CreateSubstore(name string, db word.DBDesc, password string) error {
	err := s.eval("mkdir", vm.CreateSubstoreProgram, &vm.Registers{Name: name, Desc: db, Password: password})
	if err != nil {
		return err
	}
	s.log.Info("substore created", "name", name, "db", db.String())
	return nil
}

// OpenSubstore enters the substore registered under name.
func (s *Store) OpenSubstore(name, password string) error {
	return s.eval("cd", vm.EnterProgram, &vm.Registers{Name: name, Password: password})
}

// Leave returns to the database the current substore was entered from.
func (s *Store) Leave() error {
	return s.eval("leave", vm.LeaveProgram, &vm.Registers{})
}

// Put stores a new record; the key must not exist.
func (s *Store) Put(k Key, data []byte) error {
	return s.eval("put", vm.PutProgram, &vm.Registers{Key: k, Data: data, Len: len(data)})
}

// Update overwrites the record under k, inserting it if absent.
func (s *Store) Update(k Key, data []byte) error {
	return s.eval("update", vm.UpdateProgram, &vm.Registers{Key: k, Data: data, Len: len(data)})
}

// Get copies the record under k into buf and returns its length. A buffer too
// small yields record-too-long together with the stored length.
func (s *Store) Get(k Key, buf []byte) (int, error) {
	r := &vm.Registers{Key: k, Data: buf}
	err := s.eval("get", vm.GetProgram, r)
	return r.Len, err
}

// Fetch returns a copy of the record under k.
func (s *Store) Fetch(k Key) ([]byte, error) {
	buf := make([]byte, 64)
	n, err := s.Get(k, buf)
	if dberror.KindOf(err) == dberror.KindRecordTooLong {
		buf = make([]byte, n)
		n, err = s.Get(k, buf)
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Delete removes the record under k.
func (s *Store) Delete(k Key) error {
	return s.eval("delete", vm.DeleteProgram, &vm.Registers{Key: k})
}

// Find reports whether k exists and makes it the current record if so.
func (s *Store) Find(k Key) (bool, error) {
	r := &vm.Registers{Key: k}
	if err := s.eval("find", vm.FindProgram, r); err != nil {
		return false, err
	}
	return r.R[0] == 1, nil
}

func (s *Store) move(name string, prog vm.Program) (Key, bool, error) {
	r := &vm.Registers{}
	if err := s.eval(name, prog, r); err != nil {
		return 0, false, err
	}
	return r.Key, r.Key != 0, nil
}

// First moves to the smallest key; ok is false when the database is empty.
func (s *Store) First() (k Key, ok bool, err error) {
	return s.move("first", vm.FirstProgram)
}

// Last moves to the largest key.
func (s *Store) Last() (k Key, ok bool, err error) {
	return s.move("last", vm.LastProgram)
}

// Next moves to the successor of the current key; ok is false past the end.
func (s *Store) Next() (k Key, ok bool, err error) {
	return s.move("next", vm.NextProgram)
}

// Prev moves to the predecessor of the current key.
func (s *Store) Prev() (k Key, ok bool, err error) {
	return s.move("prev", vm.PrevProgram)
}

// Length returns the byte length of the current record.
func (s *Store) Length() (int, error) {
	r := &vm.Registers{}
	err := s.eval("length", vm.LengthProgram, r)
	return r.Len, err
}

// Avail returns the number of words still allocatable.
func (s *Store) Avail() (int, error) {
	r := &vm.Registers{}
	err := s.eval("avail", vm.AvailProgram, r)
	return r.Len, err
}

// Clear deletes every record of the open database.
func (s *Store) Clear(dir Direction) error {
	prog := vm.ClearForwardProgram
	if dir == Backward {
		prog = vm.ClearBackwardProgram
	}
	return s.eval("clear", prog, &vm.Registers{})
}

// Eval runs a custom program. regs may be nil.
func (s *Store) Eval(prog vm.Program, regs *vm.Registers) error {
	return s.eval("eval", prog, regs)
}

// Lock takes the advisory lock of the open database until Unlock.
func (s *Store) Lock() error {
	return s.eval("lock", vm.HoldProgram, &vm.Registers{})
}

// Unlock releases the lock taken by Lock. Without one it clears a flag left set
// by a session that died holding it.
func (s *Store) Unlock() error {
	return s.eval("unlock", vm.UnlockProgram, &vm.Registers{})
}

// ReadAt copies len(buf) bytes of the record under k starting at off.
func (s *Store) ReadAt(k Key, off int, buf []byte) (int, error) {
	r := &vm.Registers{Key: k, Off: off, Data: buf, Len: len(buf)}
	if err := s.eval("readat", vm.ReadAtProgram, r); err != nil {
		return 0, err
	}
	return r.Len, nil
}

// WriteAt overwrites bytes of the record under k in place; the record keeps its length.
func (s *Store) WriteAt(k Key, off int, data []byte) error {
	return s.eval("writeat", vm.WriteAtProgram, &vm.Registers{Key: k, Off: off, Data: data, Len: len(data)})
}

// Equal reports whether the record under k holds data at off.
func (s *Store) Equal(k Key, off int, data []byte) (bool, error) {
	r := &vm.Registers{Key: k, Off: off, Data: data, Len: len(data)}
	if err := s.eval("equal", vm.EqualProgram, r); err != nil {
		return false, err
	}
	return r.R[0] == 1, nil
}

// ReadUntil returns the bytes of the record under k before the first mark byte,
// at most max of them.
func (s *Store) ReadUntil(k Key, mark byte, max int) ([]byte, error) {
	r := &vm.Registers{Key: k, Mark: mark, Data: make([]byte, max)}
	if err := s.eval("readuntil", vm.ReadUntilProgram, r); err != nil {
		return nil, err
	}
	return r.Data[:r.Len], nil
}

// Report is the result of Check.
type Report struct {
	extent.Report
	Depth      int
	Records    int
	Metablocks int
}

// Check verifies the index structure and the allocator accounting of the open
// database and reports every extent no record or metablock reaches.
func (s *Store) Check() (Report, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var rep Report
	if s.session.DB() == 0 {
		return rep, dberror.Newf(dberror.KindBadCatalog, "no database open")
	}
	st, err := s.session.Tree().Verify()
	if err != nil {
		return rep, dberror.Within(err, "check", "Engine")
	}
	rep.Depth, rep.Records, rep.Metablocks = st.Depth, st.Records, len(st.Metablocks)

	live := append(append([]word.Handle(nil), st.Metablocks...), st.Refs...)
	r, err := s.session.Allocator().Check(live)
	rep.Report = r
	if err != nil {
		return rep, dberror.Within(err, "check", "Engine")
	}
	return rep, nil
}

// Close flushes and closes the underlying zone store.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.session.Close()
}
