package extent

import (
	"time"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// NewRecord lays out a user record: the header word, then data six bytes per word.
func NewRecord(data []byte, date uint32) ([]word.Word, error) {
	if len(data) > word.MaxRecordBytes {
		return nil, dberror.Newf(dberror.KindRecordTooLong, "%d bytes", len(data))
	}
	out := make([]word.Word, 1, 1+word.WordsFor(len(data)))
	out[0] = word.RecordHeader{Date: date, Len: uint32(len(data))}.Pack()
	return append(out, word.FromBytes(data)...), nil
}

// Overhead is the minimum cost of a record in words: its header and its descriptor.
const Overhead = 2

// RecordWords is the number of allocated words a record of n bytes occupies, descriptor included.
func RecordWords(n int) int {
	return Overhead + word.WordsFor(n)
}

// Days converts t to the record date stamp: whole days since 1970, 24 bits.
func Days(t time.Time) uint32 {
	return uint32(t.Unix()/86400) & (1<<24 - 1)
}

// Record reads the record at h.
func (a *Allocator) Record(h word.Handle) (word.RecordHeader, []byte, error) {
	words, err := a.Read(h)
	if err != nil {
		return word.RecordHeader{}, nil, err
	}
	if len(words) == 0 {
		return word.RecordHeader{}, nil, dberror.Newf(dberror.KindInternal, "record %s: empty extent", h)
	}
	hdr := word.UnpackRecordHeader(words[0])
	if word.WordsFor(int(hdr.Len)) > len(words)-1 {
		return hdr, nil, dberror.Newf(dberror.KindInternal, "record %s: %d bytes in %d words", h, hdr.Len, len(words)-1)
	}
	return hdr, word.ToBytes(words[1:], int(hdr.Len)), nil
}

// RecordHeader reads only the header word of the record at h.
func (a *Allocator) RecordHeader(h word.Handle) (word.RecordHeader, error) {
	w, err := a.First(h)
	if err != nil {
		return word.RecordHeader{}, err
	}
	return word.UnpackRecordHeader(w), nil
}
