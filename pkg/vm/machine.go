package vm

import (
	"errors"
	"fmt"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/word"
)

// machine is the state of one evaluation.
type machine struct {
	s    *Session
	prog Program
	pc   int
	regs *Registers

	took   bool
	lockDB word.DBDesc
}

// Eval runs prog against regs. It stops at Stop, at the end of the program or at the
// first unskipped failure, then finalizes exactly once: a record allocated but not
// indexed is freed, a lock taken by this run is released and dirty zones are written
// back, on failure too. Panics are reported as internal errors.
func (s *Session) Eval(name string, prog Program, regs *Registers) (err error) {
	if regs == nil {
		regs = &Registers{}
	}
	m := &machine{s: s, prog: prog, regs: regs}
	defer func() {
		if r := recover(); r != nil {
			err = dberror.Newf(dberror.KindInternal, "%s panicked at %d: %v", name, m.pc, r)
		}
		err = m.finalize(name, err)
	}()
	return m.run()
}

// EvalPacked unpacks words and runs the result.
func (s *Session) EvalPacked(name string, words []word.Word, regs *Registers) error {
	prog, err := Unpack(words)
	if err != nil {
		return dberror.Within(err, name, "VM")
	}
	return s.Eval(name, prog, regs)
}

func (m *machine) run() error {
	for m.pc < len(m.prog) {
		in := m.prog[m.pc]
		m.pc++
		stop, err := m.exec(in)
		if err != nil {
			if k := in.Op.designated(); k != dberror.KindNone && dberror.KindOf(err) == k && m.canSkip() {
				m.pc += 4
				continue
			}
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// canSkip reports whether a Mark and three instructions follow the failed one.
func (m *machine) canSkip() bool {
	return m.pc+3 < len(m.prog) && m.prog[m.pc].Op == OpMark
}

func (m *machine) finalize(name string, err error) error {
	s := m.s
	if !m.regs.Pending.IsZero() {
		if ferr := s.alloc.Free(m.regs.Pending); ferr != nil && err == nil {
			err = ferr
		}
		m.regs.Pending = word.NoHandle
	}
	if m.took {
		if lerr := s.setLock(m.lockDB, false); lerr != nil && err == nil {
			err = lerr
		}
	}
	if ferr := s.cache.Flush(); ferr != nil && err == nil {
		err = ferr
	}

	log := logging.WithOp(name)
	if err != nil {
		err = dberror.Within(err, name, "VM")
		k := dberror.KindOf(err)
		var dbErr *dberror.DBError
		if k == dberror.KindInternal && errors.As(err, &dbErr) {
			log = log.With("stack", dbErr.FormatStack())
		}
		if c := k.Category(); c == dberror.ErrCategorySystem || c == dberror.ErrCategoryData {
			log.Warn("operation failed", "code", k.Code(), "error", err)
		} else {
			log.Debug("operation failed", "code", k.Code(), "error", err)
		}
		return err
	}
	log.Debug("operation done", "db", s.DB().String(), "key", fmt.Sprintf("%o", m.regs.Key))
	return nil
}
