package vm

import (
	"bytes"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/word"
)

// needsDB reports whether op touches the open database.
func needsDB(op Op) bool {
	switch op {
	case OpNop, OpStop, OpMark, OpLoop, OpSkip, OpChain, OpEnd,
		OpConst, OpCopy, OpIncr, OpName, OpInit, OpOpen:
		return false
	}
	return true
}

// exec runs one instruction. It returns true when the program stops.
func (m *machine) exec(in Instr) (bool, error) {
	s, r := m.s, m.regs
	if needsDB(in.Op) && !s.bound {
		return false, dberror.Newf(dberror.KindBadCatalog, "%s: no database open", in.Op)
	}

	switch in.Op {
	case OpNop, OpMark, OpChain:
	case OpStop, OpEnd:
		return true, nil
	case OpLoop:
		m.pc = 0
	case OpSkip:
		if m.pc+int(in.Arg) > len(m.prog) {
			return false, dberror.Newf(dberror.KindInternal, "skip %d past the end at %d", in.Arg, m.pc)
		}
		m.pc += int(in.Arg)

	case OpConst:
		r.set(Reg(in.Arg>>3), word.Word(Consts[in.Arg&7]))
	case OpCopy:
		r.set(Reg(in.Arg>>3), r.get(Reg(in.Arg&7)))
	case OpIncr:
		r.set(Reg(in.Arg&7), r.get(Reg(in.Arg&7))+1)

	case OpFind:
		return false, m.find()
	case OpMatch:
		e, err := s.tree.Current(&s.cursor)
		if dberror.KindOf(err) == dberror.KindNoCurrent {
			return false, dberror.Newf(dberror.KindNoSuchName, "key %o", r.Key)
		}
		if err != nil {
			return false, err
		}
		r.Cur = e.Ref
	case OpNoMatch:
		_, err := s.tree.Current(&s.cursor)
		if err == nil {
			return false, dberror.Newf(dberror.KindNameExists, "key %o", r.Key)
		}
		if dberror.KindOf(err) != dberror.KindNoCurrent {
			return false, err
		}
	case OpFirst, OpLast, OpNext, OpPrev:
		return false, m.navigate(in.Op)

	case OpAlloc:
		return false, m.alloc()
	case OpInsert:
		return false, m.insert()
	case OpUpdate:
		return false, m.update()
	case OpFree:
		e, err := s.tree.Current(&s.cursor)
		if err != nil {
			return false, err
		}
		r.Cur = word.NoHandle
		return false, s.alloc.Free(e.Ref)
	case OpDelKey:
		return false, s.tree.Delete(&s.cursor)
	case OpLength:
		e, err := s.tree.Current(&s.cursor)
		if err != nil {
			return false, err
		}
		hdr, err := s.alloc.RecordHeader(e.Ref)
		if err != nil {
			return false, err
		}
		r.Key, r.Cur, r.Len = e.Key, e.Ref, int(hdr.Len)

	case OpRead, OpReadAt, OpWriteAt, OpCompare, OpSeek, OpScan:
		return false, m.transfer(in.Op)

	case OpName:
		if err := ValidName(r.Name); err != nil {
			return false, err
		}
		r.Key = NameKey(r.Name)
	case OpEntry:
		e, err := newEntry(r.Desc, r.Name, r.Password, s.opts.PasswordCost)
		if err != nil {
			return false, err
		}
		r.Data = e.Encode()
		r.Len = len(r.Data)
	case OpFormat:
		return false, m.formatSubstore()
	case OpEnter:
		return false, m.enter()
	case OpLeave:
		return false, m.leave()

	case OpInit:
		s.parents = nil
		return false, s.format(r.Desc)
	case OpOpen:
		s.parents = nil
		return false, s.attach(r.Desc)
	case OpSetRoot:
		s.tree.Invalidate()
		s.cursor.Clear()
		return false, s.tree.VerifyRoot()
	case OpSave:
		return false, s.cache.Flush()
	case OpLock:
		return false, m.lock()
	case OpHold:
		return false, m.hold()
	case OpUnlock:
		return false, m.unlock()
	case OpAvail:
		n, err := s.alloc.Avail()
		if err != nil {
			return false, err
		}
		r.Len = n

	default:
		return false, dberror.Newf(dberror.KindInternal, "unknown opcode %s at %d", in.Op, m.pc-1)
	}
	return false, nil
}

func (m *machine) find() error {
	s, r := m.s, m.regs
	if !word.ValidKey(r.Key) {
		return dberror.Newf(dberror.KindInvalidName, "key %o", r.Key)
	}
	found, err := s.tree.Search(&s.cursor, r.Key)
	if err != nil {
		return err
	}
	r.Found, r.Cur = 0, word.NoHandle
	if found {
		e, err := s.tree.Current(&s.cursor)
		if err != nil {
			return err
		}
		r.Found, r.Cur = e.Key, e.Ref
	}
	return nil
}

func (m *machine) navigate(op Op) error {
	s := m.s
	var (
		e   word.Element
		err error
	)
	switch op {
	case OpFirst:
		e, err = s.tree.First(&s.cursor)
	case OpLast:
		e, err = s.tree.Last(&s.cursor)
	case OpNext:
		e, err = s.tree.Next(&s.cursor)
	default:
		e, err = s.tree.Prev(&s.cursor)
	}
	if err != nil {
		return err
	}
	m.regs.Key, m.regs.Cur = e.Key, e.Ref
	return nil
}

func (m *machine) record() ([]byte, error) {
	s := m.s
	e, err := s.tree.Current(&s.cursor)
	if err != nil {
		return nil, err
	}
	m.regs.Cur = e.Ref
	_, data, err := s.alloc.Record(e.Ref)
	return data, err
}

func (m *machine) alloc() error {
	s, r := m.s, m.regs
	if !r.Pending.IsZero() {
		return dberror.Newf(dberror.KindInternal, "record %s already pending", r.Pending)
	}
	data, err := r.payload()
	if err != nil {
		return err
	}
	words, err := extent.NewRecord(data, s.date())
	if err != nil {
		return err
	}
	h, err := s.alloc.Allocate(words)
	if err != nil {
		return err
	}
	r.Pending = h
	return nil
}

func (m *machine) insert() error {
	s, r := m.s, m.regs
	if r.Pending.IsZero() {
		return dberror.Newf(dberror.KindZeroKey, "insert without an allocated record")
	}
	if !word.ValidKey(r.Key) {
		return dberror.Newf(dberror.KindInvalidName, "key %o", r.Key)
	}
	h := r.Pending
	if err := s.tree.Insert(&s.cursor, r.Key, h); err != nil {
		// finalize frees the pending record
		return err
	}
	r.Cur, r.Pending = h, word.NoHandle
	return nil
}

// update rewrites the current record: in place when the word count is unchanged,
// otherwise by allocating the new record, freeing the old one and repointing the index.
func (m *machine) update() error {
	s, r := m.s, m.regs
	e, err := s.tree.Current(&s.cursor)
	if err != nil {
		return err
	}
	data, err := r.payload()
	if err != nil {
		return err
	}
	words, err := extent.NewRecord(data, s.date())
	if err != nil {
		return err
	}
	n, err := s.alloc.Length(e.Ref)
	if err != nil {
		return err
	}
	if n == len(words) {
		r.Cur = e.Ref
		return s.alloc.Write(e.Ref, 0, words)
	}

	h, err := s.alloc.Allocate(words)
	if err != nil {
		return err
	}
	if err := s.alloc.Free(e.Ref); err != nil {
		return err
	}
	if err := s.tree.SetRef(&s.cursor, h); err != nil {
		return err
	}
	r.Cur = h
	return nil
}

func (m *machine) transfer(op Op) error {
	s, r := m.s, m.regs
	rec, err := m.record()
	if err != nil {
		return err
	}

	switch op {
	case OpRead:
		r.Len = len(rec)
		if len(rec) > len(r.Data) {
			return dberror.Newf(dberror.KindRecordTooLong, "%d byte record, %d byte buffer", len(rec), len(r.Data))
		}
		copy(r.Data, rec)

	case OpReadAt:
		if err := r.window(len(rec)); err != nil {
			return err
		}
		if r.Len > len(r.Data) {
			return dberror.Newf(dberror.KindRecordTooLong, "%d bytes requested, %d byte buffer", r.Len, len(r.Data))
		}
		copy(r.Data, rec[r.Off:r.Off+r.Len])

	case OpWriteAt:
		data, err := r.payload()
		if err != nil {
			return err
		}
		if err := r.window(len(rec)); err != nil {
			return err
		}
		copy(rec[r.Off:], data)
		return s.alloc.Write(r.Cur, 1, word.FromBytes(rec))

	case OpCompare:
		data, err := r.payload()
		if err != nil {
			return err
		}
		if err := r.window(len(rec)); err != nil {
			return err
		}
		if !bytes.Equal(rec[r.Off:r.Off+r.Len], data) {
			return dberror.Newf(dberror.KindMismatch, "%d bytes at %d", r.Len, r.Off)
		}

	case OpSeek:
		if r.Off < 0 || r.Off > len(rec) {
			return dberror.Newf(dberror.KindSeekOutOfBounds, "offset %d of a %d byte record", r.Off, len(rec))
		}

	case OpScan:
		if r.Off < 0 || r.Off > len(rec) {
			return dberror.Newf(dberror.KindSeekOutOfBounds, "offset %d of a %d byte record", r.Off, len(rec))
		}
		i := bytes.IndexByte(rec[r.Off:], r.Mark)
		if i < 0 {
			return dberror.Newf(dberror.KindNoEndMark, "byte %#02x after offset %d", r.Mark, r.Off)
		}
		r.Len = i
	}
	return nil
}

// formatSubstore initializes the database in Desc and returns to the current one.
func (m *machine) formatSubstore() error {
	s, r := m.s, m.regs
	cur := s.cache.DB()
	if !r.Desc.Valid() {
		return dberror.Newf(dberror.KindBadCatalog, "invalid database descriptor %s", r.Desc)
	}
	for _, db := range append([]word.DBDesc{cur}, s.parents...) {
		if overlaps(db, r.Desc) {
			return dberror.Newf(dberror.KindBadCatalog, "%s overlaps open database %s", r.Desc, db)
		}
	}
	if err := s.format(r.Desc); err != nil {
		_ = s.attach(cur)
		return err
	}
	return s.attach(cur)
}

// enter opens the substore described by the current record.
func (m *machine) enter() error {
	s, r := m.s, m.regs
	rec, err := m.record()
	if err != nil {
		return err
	}
	// Names share the key space with user records; a record that is not an
	// entry for this name means the name is not registered.
	e, err := DecodeEntry(rec)
	if err != nil {
		return dberror.Newf(dberror.KindNoSuchName, "%q (key %o holds a user record)", r.Name, r.Key)
	}
	if e.Name != r.Name {
		return dberror.Newf(dberror.KindNoSuchName, "%q (entry holds %q)", r.Name, e.Name)
	}
	if err := e.authorize(r.Password); err != nil {
		return err
	}

	parent := s.cache.DB()
	if err := s.attach(e.Desc); err != nil {
		if perr := s.attach(parent); perr != nil {
			return perr
		}
		return err
	}
	s.parents = append(s.parents, parent)
	r.Desc = e.Desc
	return nil
}

func (m *machine) leave() error {
	s := m.s
	if len(s.parents) == 0 {
		return dberror.Newf(dberror.KindNoSuchName, "not inside a substore")
	}
	parent := s.parents[len(s.parents)-1]
	s.parents = s.parents[:len(s.parents)-1]
	m.regs.Desc = parent
	return s.attach(parent)
}

// lock sets the advisory flag for the rest of this run. A flag already held by the
// session or by this run is not a conflict. The catalog is re-read so that a flag
// set by another session is seen.
func (m *machine) lock() error {
	s := m.s
	db := s.cache.DB()
	if (s.holds && s.heldDB == db) || (m.took && m.lockDB == db) {
		return nil
	}
	if err := s.cache.Bind(db); err != nil {
		return err
	}
	s.tree.Invalidate()
	locked, err := s.locked()
	if err != nil {
		return err
	}
	if locked {
		return dberror.Newf(dberror.KindAlreadyLocked, "database %s", db)
	}
	if err := s.setLock(db, true); err != nil {
		return err
	}
	m.took, m.lockDB = true, db
	return nil
}

// hold takes the lock beyond the end of the run.
func (m *machine) hold() error {
	s := m.s
	if s.holds {
		return nil
	}
	if err := m.lock(); err != nil {
		return err
	}
	m.took = false
	s.holds, s.heldDB = true, m.lockDB
	return nil
}

// unlock releases a held lock, or clears a stale flag on the open database.
func (m *machine) unlock() error {
	s := m.s
	if s.holds {
		s.holds = false
		return s.setLock(s.heldDB, false)
	}
	return s.setLock(s.cache.DB(), false)
}
