package btree

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// insertion carries the cursor path and the metablocks reserved for splits.
type insertion struct {
	c     *Cursor
	spare []word.Handle
}

func (in *insertion) take() word.Handle {
	h := in.spare[len(in.spare)-1]
	in.spare = in.spare[:len(in.spare)-1]
	return h
}

// Insert adds key -> ref right after the cursor position. The cursor must rest where
// Search(key) left it on a miss; uniqueness is the caller's concern. Every metablock
// a split could need is allocated first, so running out of space leaves the tree
// untouched. On success the cursor is positioned on the new key.
func (t *Tree) Insert(c *Cursor, key word.Word, ref word.Handle) error {
	if !c.valid || c.gen != t.gen || c.key != key {
		if _, err := t.Search(c, key); err != nil {
			return err
		}
	}

	need, err := t.splitsNeeded(c)
	if err != nil {
		return err
	}

	in := &insertion{c: c}
	for i := 0; i < need; i++ {
		h, err := t.alloc.Allocate(make([]word.Word, NodeWords(NodeCap)))
		if err != nil {
			for _, s := range in.spare {
				_ = t.alloc.Free(s)
			}
			return dberror.Within(err, "Insert", "BTree")
		}
		in.spare = append(in.spare, h)
	}

	leafLvl := c.depth - 1
	err = t.insertAt(in, leafLvl, c.path[leafLvl].Pos+1, word.Element{Key: key, Ref: ref})
	t.gen++
	if err != nil {
		return err
	}
	if len(in.spare) != 0 {
		return dberror.Newf(dberror.KindInternal, "%d reserved metablocks unused", len(in.spare))
	}

	_, err = t.Search(c, key)
	return err
}

// splitsNeeded counts the full nodes from the leaf upward; each needs one new
// metablock. A full root at maximum depth cannot grow.
func (t *Tree) splitsNeeded(c *Cursor) (int, error) {
	need := 0
	for lvl := c.depth - 1; lvl >= 0; lvl-- {
		n, err := t.read(c.path[lvl].Node)
		if err != nil {
			return 0, err
		}
		if !n.IsFull() {
			break
		}
		if n.IsRoot() && c.depth >= MaxDepth {
			return 0, dberror.Newf(dberror.KindOverflow, "index height would exceed %d", MaxDepth)
		}
		need++
	}
	return need, nil
}

// insertAt inserts e at position pos of the node on level lvl of the cursor path.
func (t *Tree) insertAt(in *insertion, lvl, pos int, e word.Element) error {
	n, err := t.read(in.c.path[lvl].Node)
	if err != nil {
		return err
	}

	if !n.IsFull() {
		n.insert(pos, e)
		if err := t.write(n); err != nil {
			return err
		}
		if pos == 0 && lvl > 0 {
			return t.fixKey(in.c, lvl-1, e.Key)
		}
		return nil
	}

	if n.IsRoot() {
		return t.growRoot(in, n, pos, e)
	}
	return t.split(in, lvl, n, pos, e)
}

// fixKey rewrites the parent element on level lvl after the first key of its child
// changed, continuing upward while the element is itself the first of its node.
func (t *Tree) fixKey(c *Cursor, lvl int, key word.Word) error {
	for ; lvl >= 0; lvl-- {
		n, err := t.read(c.path[lvl].Node)
		if err != nil {
			return err
		}
		pos := c.path[lvl].Pos
		if n.Elems[pos].Key == key {
			return nil
		}
		n.Elems[pos].Key = key
		if err := t.write(n); err != nil {
			return err
		}
		if pos != 0 {
			return nil
		}
	}
	return nil
}

// split moves the upper half of a full node (with e inserted) into a new right
// sibling and inserts the sibling into the parent.
func (t *Tree) split(in *insertion, lvl int, n *Node, pos int, e word.Element) error {
	n.insert(pos, e)
	mid := len(n.Elems) / 2

	m := &Node{
		Handle: in.take(),
		Next:   n.Next,
		Prev:   n.Handle,
		Elems:  append([]word.Element(nil), n.Elems[mid:]...),
	}
	n.Elems = n.Elems[:mid]
	n.Next = m.Handle

	if m.Next != word.NoHandle {
		right, err := t.read(m.Next)
		if err != nil {
			return err
		}
		right.Prev = m.Handle
		if err := t.write(right); err != nil {
			return err
		}
	}
	if err := t.write(n); err != nil {
		return err
	}
	if err := t.write(m); err != nil {
		return err
	}
	t.log.Debug("metablock split", "node", n.Handle.String(), "sibling", m.Handle.String(), "level", lvl)

	if pos == 0 {
		if err := t.fixKey(in.c, lvl-1, e.Key); err != nil {
			return err
		}
	}
	parentPos := in.c.path[lvl-1].Pos
	return t.insertAt(in, lvl-1, parentPos+1, word.Element{Key: m.FirstKey(), Ref: m.Handle, Indirect: true})
}

// growRoot moves the full root's contents (with e inserted) into a new child and
// leaves the root with a single indirect element, adding one level to the tree.
func (t *Tree) growRoot(in *insertion, root *Node, pos int, e word.Element) error {
	child := &Node{
		Handle: in.take(),
		Elems:  append([]word.Element(nil), root.Elems...),
	}
	child.insert(pos, e)
	if err := t.write(child); err != nil {
		return err
	}

	root.Elems = []word.Element{{Key: child.FirstKey(), Ref: child.Handle, Indirect: true}}
	if err := t.write(root); err != nil {
		return err
	}
	t.log.Debug("root grown", "child", child.Handle.String())
	return nil
}
