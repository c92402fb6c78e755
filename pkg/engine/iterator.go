package engine

import (
	dberror "zonedb/pkg/error"
)

// Iterator walks the records of the open database in key order. It steps the
// store's own current-record position, so any other call on the store between
// HasNext and Next moves it as well.
//
//	it := store.Iterator(engine.Forward)
//	if err := it.Open(); err != nil { ... }
//	defer it.Close()
//	for {
//		ok, err := it.HasNext()
//		if err != nil || !ok { break }
//		k, data, err := it.Next()
//		...
//	}
type Iterator struct {
	store   *Store
	dir     Direction
	opened  bool
	started bool

	// nextKey is valid when fetched is set; 0 means the walk is over.
	nextKey Key
	fetched bool
}

// Iterator returns an unopened iterator over s.
func (s *Store) Iterator(dir Direction) *Iterator {
	return &Iterator{store: s, dir: dir}
}

// Open positions the iterator before the first record.
func (it *Iterator) Open() error {
	it.opened = true
	return it.Rewind()
}

// Rewind restarts the walk from the first record in the iterator's direction.
func (it *Iterator) Rewind() error {
	if !it.opened {
		return dberror.Newf(dberror.KindNoCurrent, "iterator not opened")
	}
	it.started = false
	it.fetched = false
	it.nextKey = 0
	return nil
}

// Close ends the walk. Closing twice is harmless.
func (it *Iterator) Close() error {
	it.opened = false
	it.fetched = false
	return nil
}

// HasNext reports whether Next has a record to return.
func (it *Iterator) HasNext() (bool, error) {
	if !it.opened {
		return false, dberror.Newf(dberror.KindNoCurrent, "iterator not opened")
	}
	if !it.fetched {
		if err := it.advance(); err != nil {
			return false, err
		}
	}
	return it.nextKey != 0, nil
}

// Next returns the key and contents of the next record.
func (it *Iterator) Next() (Key, []byte, error) {
	ok, err := it.HasNext()
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, dberror.Newf(dberror.KindNoNext, "iterator exhausted")
	}
	k := it.nextKey
	it.fetched = false
	data, err := it.store.Fetch(k)
	if err != nil {
		return 0, nil, err
	}
	return k, data, nil
}

func (it *Iterator) advance() error {
	var (
		k   Key
		err error
	)
	switch {
	case !it.started && it.dir == Backward:
		k, _, err = it.store.Last()
	case !it.started:
		k, _, err = it.store.First()
	default:
		// Fetch re-positioned the cursor on the key it returned.
		if it.dir == Backward {
			k, _, err = it.store.Prev()
		} else {
			k, _, err = it.store.Next()
		}
	}
	if err != nil {
		return err
	}
	it.started = true
	it.fetched = true
	it.nextKey = k
	return nil
}
