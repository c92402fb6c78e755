// Package zonereader reads the zone files of a database without going through the
// engine. It never writes: every inconsistency is reported as an error so the
// diagnostic tools can stop at the first sign of corruption.
package zonereader

import (
	"context"
	"log/slog"
	"os"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

// DefaultWorkers bounds the number of zone files read at once.
const DefaultWorkers = 8

// ZoneInfo summarizes one zone.
type ZoneInfo struct {
	Number      primitives.ZoneNumber
	File        string
	Header      word.Word
	Control     word.Control
	Extents     []word.Descriptor
	Fingerprint uint32
}

// Used is the number of words held by extents.
func (z ZoneInfo) Used() int {
	n := 0
	for _, d := range z.Extents {
		n += int(d.Length)
	}
	return n
}

// Snapshot is an in-memory copy of every zone of one database.
type Snapshot struct {
	DB    word.DBDesc
	Zones []ZoneInfo
	image []*zone.Zone
}

// Reader loads the zones of one database from a zone directory.
type Reader struct {
	dir     primitives.Filepath
	db      word.DBDesc
	workers int
	log     *slog.Logger
}

func New(dir primitives.Filepath, db word.DBDesc) *Reader {
	return &Reader{
		dir:     dir,
		db:      db,
		workers: DefaultWorkers,
		log:     logging.WithComponent("zonereader"),
	}
}

// SetWorkers changes how many zone files are read concurrently.
func (r *Reader) SetWorkers(n int) {
	if n > 0 {
		r.workers = n
	}
}

// Load reads every zone concurrently and verifies the result. A missing or short
// zone file is corruption, not an empty zone.
func (r *Reader) Load(ctx context.Context) (*Snapshot, error) {
	if !r.db.Valid() {
		return nil, dberror.Newf(dberror.KindBadCatalog, "invalid database descriptor %s", r.db)
	}

	images := make([]*zone.Zone, r.db.Length())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range images {
		z := primitives.ZoneNumber(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := r.dir.ZoneFile(r.db.Abs(z))
			data, err := os.ReadFile(path.String())
			if err != nil {
				return dberror.IOError(err, "ReadZone", "ZoneReader")
			}
			img, err := zone.Decode(data)
			if err != nil {
				return dberror.Newf(dberror.KindPageCorrupted, "%s: %v", path.Base(), err)
			}
			images[z] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := newSnapshot(r.db, images)
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	r.log.Debug("zones loaded", "db", r.db.String(), "zones", len(images))
	return snap, nil
}

func newSnapshot(db word.DBDesc, images []*zone.Zone) *Snapshot {
	s := &Snapshot{DB: db, image: images, Zones: make([]ZoneInfo, len(images))}
	for i, img := range images {
		z := primitives.ZoneNumber(i)
		s.Zones[i] = ZoneInfo{
			Number:      z,
			File:        db.Abs(z).Name(),
			Header:      img.Header(),
			Control:     img.Control(),
			Extents:     img.Descriptors(),
			Fingerprint: murmur3.Sum32(img.Encode()),
		}
	}
	return s
}

// Read returns the contents of the extent chain at h.
func (s *Snapshot) Read(h word.Handle) ([]word.Word, error) {
	var out []word.Word
	for hops := 0; !h.IsZero(); hops++ {
		if hops > len(s.image)*word.ZoneWords {
			return nil, dberror.Newf(dberror.KindInternal, "extent chain through %s loops", h)
		}
		if int(h.Zone()) >= len(s.image) {
			return nil, dberror.Newf(dberror.KindNoSuchRecord, "handle %s outside the database", h)
		}
		d, ok := s.descriptor(h)
		if !ok {
			return nil, dberror.Newf(dberror.KindNoSuchRecord, "handle %s", h)
		}
		out = append(out, s.image[h.Zone()][d.Start:d.End()]...)
		h = d.Next
	}
	return out, nil
}

func (s *Snapshot) descriptor(h word.Handle) (word.Descriptor, bool) {
	for _, d := range s.Zones[h.Zone()].Extents {
		if d.ID == h.ID() {
			return d, true
		}
	}
	return word.Descriptor{}, false
}
