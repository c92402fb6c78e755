package btree

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/word"
)

const (
	// RootCap is the element capacity of the root metablock.
	RootCap = 32

	// NodeCap is the element capacity of a secondary metablock.
	NodeCap = 64

	// MaxDepth bounds the height of the tree and the cursor stack.
	MaxDepth = 4
)

// NodeWords is the allocated size of a metablock holding capacity elements.
func NodeWords(capacity int) int {
	return 1 + 2*capacity
}

// Node is a decoded metablock. Nodes are always stored at full capacity so they
// can be rewritten in place.
type Node struct {
	Handle word.Handle
	Next   word.Handle
	Prev   word.Handle
	Elems  []word.Element
}

// IsRoot reports whether n is the root metablock.
func (n *Node) IsRoot() bool {
	return n.Handle == extent.RootHandle
}

// Cap returns the element capacity of n.
func (n *Node) Cap() int {
	if n.IsRoot() {
		return RootCap
	}
	return NodeCap
}

// IsFull reports whether an insert into n requires a split.
func (n *Node) IsFull() bool {
	return len(n.Elems) >= n.Cap()
}

// IsLeaf reports whether n's elements point at records. An empty node is a leaf.
func (n *Node) IsLeaf() bool {
	return len(n.Elems) == 0 || !n.Elems[0].Indirect
}

// FirstKey returns the smallest key of n.
func (n *Node) FirstKey() word.Word {
	return n.Elems[0].Key
}

// search returns the position of the last element with key <= target, or -1.
// Elements are scanned from the highest key down.
func (n *Node) search(key word.Word) int {
	for i := len(n.Elems) - 1; i >= 0; i-- {
		if n.Elems[i].Key <= key {
			return i
		}
	}
	return -1
}

func (n *Node) insert(pos int, e word.Element) {
	n.Elems = append(n.Elems, word.Element{})
	copy(n.Elems[pos+1:], n.Elems[pos:])
	n.Elems[pos] = e
}

func (n *Node) remove(pos int) {
	n.Elems = append(n.Elems[:pos], n.Elems[pos+1:]...)
}

// Encode serializes n at full capacity.
func (n *Node) Encode() []word.Word {
	out := make([]word.Word, NodeWords(n.Cap()))
	out[0] = word.MetaHeader{Count: uint16(len(n.Elems)), Next: n.Next, Prev: n.Prev}.Pack()
	for i, e := range n.Elems {
		out[1+2*i], out[2+2*i] = e.Pack()
	}
	return out
}

// DecodeNode parses the metablock image stored at h.
func DecodeNode(h word.Handle, words []word.Word) (*Node, error) {
	if len(words) == 0 {
		return nil, dberror.Newf(dberror.KindInternal, "metablock %s: empty", h)
	}
	hdr := word.UnpackMetaHeader(words[0])
	n := &Node{Handle: h, Next: hdr.Next, Prev: hdr.Prev}
	if int(hdr.Count) > n.Cap() || NodeWords(int(hdr.Count)) > len(words) {
		return nil, dberror.Newf(dberror.KindInternal, "metablock %s: %d elements in %d words", h, hdr.Count, len(words))
	}
	n.Elems = make([]word.Element, hdr.Count)
	for i := range n.Elems {
		n.Elems[i] = word.UnpackElement(words[1+2*i], words[2+2*i])
	}
	return n, nil
}

// RootImage is the initial content of the root metablock of a new database.
func RootImage() []word.Word {
	return (&Node{Handle: extent.RootHandle}).Encode()
}
