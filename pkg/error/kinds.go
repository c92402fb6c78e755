package error

import (
	"errors"
	"fmt"
)

// Kind enumerates the engine's typed error conditions.
type Kind int

const (
	KindNone Kind = iota
	KindZeroKey
	KindPageCorrupted
	KindNoSuchRecord
	KindInvalidName
	KindBadCatalog
	KindOverflow
	KindSeekOutOfBounds
	KindNoSuchName
	KindNameExists
	KindNoEndMark
	KindInternal
	KindRecordTooLong
	KindAlreadyLocked
	KindNoCurrent
	KindNoPrev
	KindNoNext
	KindWrongPassword
	KindMismatch
	KindIO
)

type kindInfo struct {
	code     string
	category ErrorCategory
	message  string
}

var kinds = map[Kind]kindInfo{
	KindZeroKey:         {"ZERO_KEY", ErrCategoryData, "Null handle addressed"},
	KindPageCorrupted:   {"PAGE_CORRUPTED", ErrCategoryData, "Zone header mismatch"},
	KindNoSuchRecord:    {"NO_SUCH_RECORD", ErrCategoryData, "No such record"},
	KindInvalidName:     {"INVALID_NAME", ErrCategoryUser, "Invalid name"},
	KindBadCatalog:      {"BAD_CATALOG", ErrCategoryData, "Bad catalog"},
	KindOverflow:        {"OVERFLOW", ErrCategorySystem, "Database overflow"},
	KindSeekOutOfBounds: {"SEEK_OUT_OF_BOUNDS", ErrCategoryUser, "Seek out of bounds"},
	KindNoSuchName:      {"NO_SUCH_NAME", ErrCategoryUser, "No such name"},
	KindNameExists:      {"NAME_EXISTS", ErrCategoryUser, "Name already exists"},
	KindNoEndMark:       {"NO_END_MARK", ErrCategoryUser, "No end mark"},
	KindInternal:        {"INTERNAL_ERROR", ErrCategorySystem, "Internal error"},
	KindRecordTooLong:   {"RECORD_TOO_LONG", ErrCategoryUser, "Record too long"},
	KindAlreadyLocked:   {"ALREADY_LOCKED", ErrCategoryConcurrency, "Already locked"},
	KindNoCurrent:       {"NO_CURRENT_RECORD", ErrCategoryUser, "No current record"},
	KindNoPrev:          {"NO_PREVIOUS_RECORD", ErrCategoryTransient, "No previous record"},
	KindNoNext:          {"NO_NEXT_RECORD", ErrCategoryTransient, "No next record"},
	KindWrongPassword:   {"WRONG_PASSWORD", ErrCategoryUser, "Wrong password"},
	KindMismatch:        {"COMPARE_MISMATCH", ErrCategoryTransient, "Compare mismatch"},
	KindIO:              {"IO_ERROR", ErrCategorySystem, "Zone I/O failed"},
}

// Code returns the stable error code of the kind.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "OK"
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.message
	}
	return "ok"
}

// Category returns the handling category of the kind.
func (k Kind) Category() ErrorCategory {
	return kinds[k].category
}

// Sentinels for errors.Is. Errors returned by the engine are fresh DBError values
// carrying context; they match these by kind.
var (
	ErrZeroKey         = sentinel(KindZeroKey)
	ErrPageCorrupted   = sentinel(KindPageCorrupted)
	ErrNoSuchRecord    = sentinel(KindNoSuchRecord)
	ErrInvalidName     = sentinel(KindInvalidName)
	ErrBadCatalog      = sentinel(KindBadCatalog)
	ErrOverflow        = sentinel(KindOverflow)
	ErrSeekOutOfBounds = sentinel(KindSeekOutOfBounds)
	ErrNoSuchName      = sentinel(KindNoSuchName)
	ErrNameExists      = sentinel(KindNameExists)
	ErrNoEndMark       = sentinel(KindNoEndMark)
	ErrInternal        = sentinel(KindInternal)
	ErrRecordTooLong   = sentinel(KindRecordTooLong)
	ErrAlreadyLocked   = sentinel(KindAlreadyLocked)
	ErrNoCurrent       = sentinel(KindNoCurrent)
	ErrNoPrev          = sentinel(KindNoPrev)
	ErrNoNext          = sentinel(KindNoNext)
	ErrWrongPassword   = sentinel(KindWrongPassword)
	ErrMismatch        = sentinel(KindMismatch)
	ErrIO              = sentinel(KindIO)
)

func sentinel(k Kind) *DBError {
	info := kinds[k]
	return &DBError{Kind: k, Code: info.code, Category: info.category, Message: info.message}
}

// Newf creates an error of kind k with a formatted detail.
func Newf(k Kind, format string, args ...any) *DBError {
	info := kinds[k]
	return &DBError{
		Kind:     k,
		Code:     info.code,
		Category: info.category,
		Message:  info.message,
		Detail:   fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// IOError classifies a storage failure as an I/O error of kind KindIO.
func IOError(cause error, operation, component string) *DBError {
	info := kinds[KindIO]
	return &DBError{
		Kind:      KindIO,
		Code:      info.code,
		Category:  info.category,
		Message:   info.message,
		Operation: operation,
		Component: component,
		Cause:     cause,
		Stack:     captureStack(),
	}
}

// Is matches two DBErrors of the same engine kind.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	if t.Kind != KindNone {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf extracts the engine kind from err; nil yields KindNone, foreign errors KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) && dbErr.Kind != KindNone {
		return dbErr.Kind
	}
	return KindInternal
}

// Within sets the operation and component on err when it is a DBError and they are unset.
func Within(err error, operation, component string) error {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
	}
	return err
}
