package zone

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"zonedb/pkg/primitives"
)

// Store persists zones by absolute zone number.
type Store interface {
	// ReadZone returns the zone image. A zone that was never written reads as the
	// sentinel pattern rather than failing.
	ReadZone(a primitives.AbsZone) (*Zone, error)

	// WriteZone persists the zone image.
	WriteZone(a primitives.AbsZone, z *Zone) error

	// Close releases any resources held by the store.
	Close() error
}

// DirStore keeps one file per zone inside a directory. Each file is named by the
// absolute zone number as a six digit octal numeral and holds Size bytes.
type DirStore struct {
	dir   primitives.Filepath
	mutex sync.RWMutex
}

// NewDirStore opens (creating if needed) a zone directory.
func NewDirStore(dir primitives.Filepath) (*DirStore, error) {
	if dir.IsEmpty() {
		return nil, errors.New("zone directory cannot be empty")
	}
	if err := dir.MkdirAll(0o750); err != nil {
		return nil, errors.Wrapf(err, "failed to create zone directory %s", dir)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the zone directory.
func (s *DirStore) Dir() primitives.Filepath {
	return s.dir
}

// ReadZone reads one zone file. Missing files yield the sentinel zone.
func (s *DirStore) ReadZone(a primitives.AbsZone) (*Zone, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	path := s.dir.ZoneFile(a)
	data, err := os.ReadFile(path.String())
	if os.IsNotExist(err) {
		return Sentinel(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read zone %s", a.Name())
	}

	z, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "zone file %s", path)
	}
	return z, nil
}

// WriteZone writes and syncs one zone file.
func (s *DirStore) WriteZone(a primitives.AbsZone, z *Zone) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.dir.ZoneFile(a)
	f, err := os.OpenFile(path.String(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrapf(err, "failed to open zone %s", a.Name())
	}

	if _, err := f.Write(z.Encode()); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write zone %s", a.Name())
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to sync zone %s", a.Name())
	}

	return f.Close()
}

func (s *DirStore) Close() error {
	return nil
}

// MemStore is an in-memory Store. Zones are copied in and out so callers never share buffers.
type MemStore struct {
	mutex  sync.Mutex
	zones  map[primitives.AbsZone]*Zone
	Reads  int
	Writes int
}

func NewMemStore() *MemStore {
	return &MemStore{zones: make(map[primitives.AbsZone]*Zone)}
}

func (s *MemStore) ReadZone(a primitives.AbsZone) (*Zone, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Reads++
	z, ok := s.zones[a]
	if !ok {
		return Sentinel(), nil
	}
	return z.Clone(), nil
}

func (s *MemStore) WriteZone(a primitives.AbsZone, z *Zone) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Writes++
	s.zones[a] = z.Clone()
	return nil
}

// Has reports whether zone a was ever written.
func (s *MemStore) Has(a primitives.AbsZone) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.zones[a]
	return ok
}

func (s *MemStore) Close() error {
	return nil
}
