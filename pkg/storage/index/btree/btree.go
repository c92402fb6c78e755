// Package btree implements the metablock index: a key-ordered tree whose nodes
// are extents managed by the allocator.
//
// The root lives at a fixed handle in zone 0 and holds up to RootCap elements;
// secondary nodes hold up to NodeCap. Every element is a key and a handle. In a
// leaf the handle addresses a record, in an internal node it addresses a child
// metablock and carries the indirect flag. The first key of a non-root node is
// always the minimum key reachable through it, so descending by "last key <= target"
// never misses.
package btree

import (
	"log/slog"

	dberror "zonedb/pkg/error"
	"zonedb/pkg/logging"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/word"
)

// Tree is the index of one database.
type Tree struct {
	alloc *extent.Allocator
	gen   uint64
	log   *slog.Logger
}

// New creates a tree over the database the allocator is bound to.
func New(alloc *extent.Allocator) *Tree {
	return &Tree{
		alloc: alloc,
		log:   logging.WithComponent("btree"),
	}
}

// Invalidate marks every existing cursor stale. Called when the database is switched.
func (t *Tree) Invalidate() {
	t.gen++
}

func (t *Tree) read(h word.Handle) (*Node, error) {
	words, err := t.alloc.Read(h)
	if err != nil {
		return nil, err
	}
	return DecodeNode(h, words)
}

func (t *Tree) write(n *Node) error {
	return t.alloc.Write(n.Handle, 0, n.Encode())
}

// Root reads the root metablock.
func (t *Tree) Root() (*Node, error) {
	return t.read(extent.RootHandle)
}

// VerifyRoot checks the fixed root: it must exist at its reserved handle with no siblings.
func (t *Tree) VerifyRoot() error {
	root, err := t.Root()
	if err != nil {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock: %v", err)
	}
	if root.Next != word.NoHandle || root.Prev != word.NoHandle {
		return dberror.Newf(dberror.KindBadCatalog, "root metablock has siblings %s/%s", root.Prev, root.Next)
	}
	return nil
}

// Search positions c on key. It returns true when the key exists; on a miss the
// cursor rests on the greatest smaller key (leaf position -1 if there is none).
func (t *Tree) Search(c *Cursor, key word.Word) (bool, error) {
	c.reset()
	c.key = key
	h := extent.RootHandle
	for {
		if c.depth == MaxDepth {
			return false, dberror.Newf(dberror.KindInternal, "tree deeper than %d", MaxDepth)
		}
		n, err := t.read(h)
		if err != nil {
			return false, err
		}
		pos := n.search(key)
		if n.IsLeaf() {
			c.push(h, pos)
			c.valid = true
			c.gen = t.gen
			return pos >= 0 && n.Elems[pos].Key == key, nil
		}
		if pos < 0 {
			pos = 0
		}
		c.push(h, pos)
		h = n.Elems[pos].Ref
	}
}

// sync re-validates c if the tree changed since it was positioned.
func (t *Tree) sync(c *Cursor) error {
	if !c.valid {
		return dberror.Newf(dberror.KindNoCurrent, "cursor not positioned")
	}
	if c.gen == t.gen {
		return nil
	}
	_, err := t.Search(c, c.key)
	return err
}

// leaf reads the leaf the cursor rests in.
func (t *Tree) leaf(c *Cursor) (*Node, int, error) {
	f := c.top()
	n, err := t.read(f.Node)
	if err != nil {
		return nil, 0, err
	}
	return n, f.Pos, nil
}

// Current returns the element under the cursor. A cursor whose key is no longer
// present has no current element.
func (t *Tree) Current(c *Cursor) (word.Element, error) {
	if err := t.sync(c); err != nil {
		return word.Element{}, err
	}
	n, pos, err := t.leaf(c)
	if err != nil {
		return word.Element{}, err
	}
	if pos < 0 || pos >= len(n.Elems) || n.Elems[pos].Key != c.key {
		return word.Element{}, dberror.Newf(dberror.KindNoCurrent, "key %o", c.key)
	}
	return n.Elems[pos], nil
}

// SetRef rewrites the handle of the current element, used when a record moves.
func (t *Tree) SetRef(c *Cursor, ref word.Handle) error {
	if _, err := t.Current(c); err != nil {
		return err
	}
	n, pos, err := t.leaf(c)
	if err != nil {
		return err
	}
	n.Elems[pos].Ref = ref
	return t.write(n)
}
