package zonereader

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/s2"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/zone"
	"zonedb/pkg/word"
)

var snapshotMagic = []byte("ZDB\x01")

// Export writes the snapshot as an s2 stream: the magic, the dbdesc, then every
// zone image in order.
func (s *Snapshot) Export(w io.Writer) error {
	enc := s2.NewWriter(w)
	hdr := make([]byte, len(snapshotMagic)+4)
	copy(hdr, snapshotMagic)
	binary.BigEndian.PutUint32(hdr[len(snapshotMagic):], uint32(s.DB))
	if _, err := enc.Write(hdr); err != nil {
		_ = enc.Close()
		return dberror.IOError(err, "Export", "ZoneReader")
	}
	for _, img := range s.image {
		if _, err := enc.Write(img.Encode()); err != nil {
			_ = enc.Close()
			return dberror.IOError(err, "Export", "ZoneReader")
		}
	}
	if err := enc.Close(); err != nil {
		return dberror.IOError(err, "Export", "ZoneReader")
	}
	return nil
}

// Import reads a stream written by Export and verifies it.
func Import(r io.Reader) (*Snapshot, error) {
	dec := s2.NewReader(r)
	hdr := make([]byte, len(snapshotMagic)+4)
	if _, err := io.ReadFull(dec, hdr); err != nil {
		return nil, dberror.IOError(err, "Import", "ZoneReader")
	}
	if !bytes.Equal(hdr[:len(snapshotMagic)], snapshotMagic) {
		return nil, dberror.Newf(dberror.KindBadCatalog, "not a zone snapshot")
	}
	db := word.DBDesc(binary.BigEndian.Uint32(hdr[len(snapshotMagic):]))
	if !db.Valid() {
		return nil, dberror.Newf(dberror.KindBadCatalog, "snapshot of invalid database %s", db)
	}

	images := make([]*zone.Zone, db.Length())
	buf := make([]byte, zone.Size)
	for i := range images {
		if _, err := io.ReadFull(dec, buf); err != nil {
			return nil, dberror.IOError(err, "Import", "ZoneReader")
		}
		img, err := zone.Decode(buf)
		if err != nil {
			return nil, dberror.Newf(dberror.KindPageCorrupted, "zone %d: %v", i, err)
		}
		images[i] = img
	}

	snap := newSnapshot(db, images)
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore writes every zone of the snapshot into store.
func (s *Snapshot) Restore(store zone.Store) error {
	for i, img := range s.image {
		if err := store.WriteZone(s.DB.Abs(s.Zones[i].Number), img); err != nil {
			return dberror.IOError(err, "Restore", "ZoneReader")
		}
	}
	return nil
}
