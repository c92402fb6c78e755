package vm

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/bcrypt"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// MaxNameLen bounds substore names.
const MaxNameLen = 255

// nameKeyMask folds name hashes into 46 bits.
const nameKeyMask = 1<<46 - 1

// NameKey is the key a substore is registered under in its parent. Name keys
// are ordinary keys: a user record stored under NameKey(name) keeps that name
// from being created or entered.
func NameKey(name string) word.Word {
	k := word.Word(murmur3.Sum64([]byte(name)) & nameKeyMask)
	if k == 0 {
		k = 1
	}
	return k
}

// ValidName rejects empty, oversized and non UTF-8 names.
func ValidName(name string) error {
	if name == "" || len(name) > MaxNameLen || !utf8.ValidString(name) {
		return dberror.Newf(dberror.KindInvalidName, "%q", name)
	}
	return nil
}

// Entry is the record a parent database keeps for each substore.
//
//	bytes 0-3  dbdesc, big endian
//	byte  4    name length
//	bytes 5-   name, then the bcrypt hash (absent when there is no password)
type Entry struct {
	Desc word.DBDesc
	Name string
	Hash []byte
}

func (e Entry) Encode() []byte {
	b := make([]byte, 5, 5+len(e.Name)+len(e.Hash))
	binary.BigEndian.PutUint32(b, uint32(e.Desc))
	b[4] = byte(len(e.Name))
	b = append(b, e.Name...)
	return append(b, e.Hash...)
}

func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < 5 || len(b) < 5+int(b[4]) {
		return Entry{}, dberror.Newf(dberror.KindBadCatalog, "substore entry of %d bytes", len(b))
	}
	n := int(b[4])
	e := Entry{
		Desc: word.DBDesc(binary.BigEndian.Uint32(b)),
		Name: string(b[5 : 5+n]),
	}
	if rest := b[5+n:]; len(rest) > 0 {
		e.Hash = append([]byte(nil), rest...)
	}
	if !e.Desc.Valid() {
		return Entry{}, dberror.Newf(dberror.KindBadCatalog, "substore %q has invalid descriptor %s", e.Name, e.Desc)
	}
	return e, nil
}

// newEntry hashes password when one is given.
func newEntry(desc word.DBDesc, name, password string, cost int) (Entry, error) {
	e := Entry{Desc: desc, Name: name}
	if password == "" {
		return e, nil
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Entry{}, dberror.Newf(dberror.KindInvalidName, "password: %v", err)
	}
	e.Hash = hash
	return e, nil
}

// authorize checks password against the entry. An entry without a hash only opens
// with an empty password.
func (e Entry) authorize(password string) error {
	if len(e.Hash) == 0 {
		if password != "" {
			return dberror.Newf(dberror.KindWrongPassword, "substore %q has no password", e.Name)
		}
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(e.Hash, []byte(password)); err != nil {
		return dberror.Newf(dberror.KindWrongPassword, "substore %q", e.Name)
	}
	return nil
}

// overlaps reports whether two databases share a zone.
func overlaps(a, b word.DBDesc) bool {
	if a.Unit() != b.Unit() {
		return false
	}
	as, bs := int(a.Start()), int(b.Start())
	return as < bs+b.Length() && bs < as+a.Length()
}
