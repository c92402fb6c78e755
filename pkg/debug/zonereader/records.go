package zonereader

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/storage/index/btree"
	"zonedb/pkg/word"
)

// Record describes one indexed record.
type Record struct {
	Key    word.Word
	Handle word.Handle
	Header word.RecordHeader
	Words  int
}

// Records walks the index from the root and lists every record in key order.
func (s *Snapshot) Records() ([]Record, error) {
	var out []Record
	err := s.walk(extent.RootHandle, 0, &out)
	return out, err
}

func (s *Snapshot) walk(h word.Handle, depth int, out *[]Record) error {
	if depth == btree.MaxDepth {
		return dberror.Newf(dberror.KindInternal, "index deeper than %d at %s", btree.MaxDepth, h)
	}
	words, err := s.Read(h)
	if err != nil {
		return err
	}
	n, err := btree.DecodeNode(h, words)
	if err != nil {
		return err
	}
	for _, e := range n.Elems {
		if e.Indirect {
			if err := s.walk(e.Ref, depth+1, out); err != nil {
				return err
			}
			continue
		}
		rec, err := s.Read(e.Ref)
		if err != nil {
			return dberror.Newf(dberror.KindNoSuchRecord, "key %o: %v", e.Key, err)
		}
		*out = append(*out, Record{
			Key:    e.Key,
			Handle: e.Ref,
			Header: word.UnpackRecordHeader(rec[0]),
			Words:  len(rec),
		})
	}
	return nil
}

// Payload returns the bytes of the record at h.
func (s *Snapshot) Payload(h word.Handle) ([]byte, error) {
	words, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	hdr := word.UnpackRecordHeader(words[0])
	if word.WordsFor(int(hdr.Len)) > len(words)-1 {
		return nil, dberror.Newf(dberror.KindInternal, "record %s: %d bytes in %d words", h, hdr.Len, len(words)-1)
	}
	return word.ToBytes(words[1:], int(hdr.Len)), nil
}
