package btree

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// Delete removes the element under the cursor. Emptied metablocks are freed and
// unlinked, small neighbours under the same parent are merged, and the root absorbs
// its only child when it fits. Afterwards the cursor keeps the deleted key, so Next
// yields its successor and Prev its predecessor.
func (t *Tree) Delete(c *Cursor) error {
	if _, err := t.Current(c); err != nil {
		return err
	}
	key := c.key

	err := t.deleteAt(c, c.depth-1)
	t.gen++
	if err != nil {
		return err
	}
	if err := t.shrinkRoot(); err != nil {
		return err
	}

	_, err = t.Search(c, key)
	return err
}

// deleteAt removes the element at the cursor position on level lvl.
func (t *Tree) deleteAt(c *Cursor, lvl int) error {
	n, err := t.read(c.path[lvl].Node)
	if err != nil {
		return err
	}
	pos := c.path[lvl].Pos
	if pos < 0 || pos >= len(n.Elems) {
		return dberror.Newf(dberror.KindInternal, "metablock %s: no element %d", n.Handle, pos)
	}
	n.remove(pos)

	if len(n.Elems) == 0 && !n.IsRoot() {
		if err := t.unlink(n); err != nil {
			return err
		}
		if err := t.alloc.Free(n.Handle); err != nil {
			return err
		}
		t.log.Debug("metablock freed", "node", n.Handle.String(), "level", lvl)
		return t.deleteAt(c, lvl-1)
	}

	if err := t.write(n); err != nil {
		return err
	}
	if pos == 0 && lvl > 0 && len(n.Elems) > 0 {
		if err := t.fixKey(c, lvl-1, n.FirstKey()); err != nil {
			return err
		}
	}
	if lvl > 0 {
		return t.mergeRight(c, lvl, n)
	}
	return nil
}

// unlink removes n from its sibling chain.
func (t *Tree) unlink(n *Node) error {
	if n.Prev != word.NoHandle {
		prev, err := t.read(n.Prev)
		if err != nil {
			return err
		}
		prev.Next = n.Next
		if err := t.write(prev); err != nil {
			return err
		}
	}
	if n.Next != word.NoHandle {
		next, err := t.read(n.Next)
		if err != nil {
			return err
		}
		next.Prev = n.Prev
		if err := t.write(next); err != nil {
			return err
		}
	}
	return nil
}

// mergeRight folds n's right sibling into n when both share a parent and their
// elements fit in half a node, then removes the sibling's parent element.
func (t *Tree) mergeRight(c *Cursor, lvl int, n *Node) error {
	parent, err := t.read(c.path[lvl-1].Node)
	if err != nil {
		return err
	}
	ppos := c.path[lvl-1].Pos
	if ppos+1 >= len(parent.Elems) {
		return nil
	}
	right, err := t.read(parent.Elems[ppos+1].Ref)
	if err != nil {
		return err
	}
	if len(n.Elems)+len(right.Elems) > NodeCap/2 {
		return nil
	}
	if n.Next != right.Handle {
		return dberror.Newf(dberror.KindInternal, "metablock %s: next is %s, parent says %s", n.Handle, n.Next, right.Handle)
	}

	n.Elems = append(n.Elems, right.Elems...)
	right.Elems = nil
	if err := t.write(n); err != nil {
		return err
	}
	if err := t.unlink(right); err != nil {
		return err
	}
	if err := t.alloc.Free(right.Handle); err != nil {
		return err
	}
	t.log.Debug("metablocks merged", "node", n.Handle.String(), "freed", right.Handle.String())

	c.path[lvl-1].Pos = ppos + 1
	return t.deleteAt(c, lvl-1)
}

// shrinkRoot pulls the only child of the root into it while the child fits.
// The root itself is never freed.
func (t *Tree) shrinkRoot() error {
	for {
		root, err := t.Root()
		if err != nil {
			return err
		}
		if len(root.Elems) != 1 || !root.Elems[0].Indirect {
			return nil
		}
		child, err := t.read(root.Elems[0].Ref)
		if err != nil {
			return err
		}
		if len(child.Elems) > RootCap {
			return nil
		}
		root.Elems = child.Elems
		if err := t.write(root); err != nil {
			return err
		}
		if err := t.alloc.Free(child.Handle); err != nil {
			return err
		}
		t.log.Debug("root shrunk", "child", child.Handle.String())
	}
}
