package btree

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/storage/extent"
	"zonedb/pkg/word"
)

// Frame is one level of the root-to-leaf path.
type Frame struct {
	Node word.Handle
	Pos  int
}

// Cursor records the path to the current element. It carries the tree generation
// it was built under; a cursor from an older generation is re-positioned by key
// before use.
type Cursor struct {
	path  [MaxDepth]Frame
	depth int
	key   word.Word
	valid bool
	gen   uint64
}

// Key returns the key the cursor is positioned on (or was, if it has since been deleted).
func (c *Cursor) Key() word.Word {
	return c.key
}

// Valid reports whether the cursor has been positioned.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Depth returns the number of levels on the path.
func (c *Cursor) Depth() int {
	return c.depth
}

// Path returns a copy of the root-to-leaf frames.
func (c *Cursor) Path() []Frame {
	return append([]Frame(nil), c.path[:c.depth]...)
}

// Clear drops the position; stepping afterwards reports no current record.
func (c *Cursor) Clear() {
	c.reset()
	c.key = 0
}

func (c *Cursor) reset() {
	c.depth = 0
	c.valid = false
}

func (c *Cursor) push(h word.Handle, pos int) {
	c.path[c.depth] = Frame{Node: h, Pos: pos}
	c.depth++
}

func (c *Cursor) top() *Frame {
	return &c.path[c.depth-1]
}

// First positions c on the smallest key.
func (t *Tree) First(c *Cursor) (word.Element, error) {
	return t.edge(c, false)
}

// Last positions c on the largest key.
func (t *Tree) Last(c *Cursor) (word.Element, error) {
	return t.edge(c, true)
}

func (t *Tree) edge(c *Cursor, last bool) (word.Element, error) {
	c.reset()
	h := extent.RootHandle
	for {
		if c.depth == MaxDepth {
			return word.Element{}, dberror.Newf(dberror.KindInternal, "tree deeper than %d", MaxDepth)
		}
		n, err := t.read(h)
		if err != nil {
			return word.Element{}, err
		}
		if len(n.Elems) == 0 {
			if last {
				return word.Element{}, dberror.Newf(dberror.KindNoPrev, "empty index")
			}
			return word.Element{}, dberror.Newf(dberror.KindNoNext, "empty index")
		}
		pos := 0
		if last {
			pos = len(n.Elems) - 1
		}
		c.push(h, pos)
		if n.IsLeaf() {
			c.key = n.Elems[pos].Key
			c.valid = true
			c.gen = t.gen
			return n.Elems[pos], nil
		}
		h = n.Elems[pos].Ref
	}
}

// Next moves c to the successor of its key. If the key was deleted the successor
// is the first key greater than it.
func (t *Tree) Next(c *Cursor) (word.Element, error) {
	if err := t.sync(c); err != nil {
		return word.Element{}, err
	}
	return t.step(c, true)
}

// Prev moves c to the predecessor of its key. If the key was deleted the cursor
// already rests on its predecessor, which is returned.
func (t *Tree) Prev(c *Cursor) (word.Element, error) {
	if err := t.sync(c); err != nil {
		return word.Element{}, err
	}
	n, pos, err := t.leaf(c)
	if err != nil {
		return word.Element{}, err
	}
	if pos >= 0 && pos < len(n.Elems) && n.Elems[pos].Key != c.key {
		c.key = n.Elems[pos].Key
		return n.Elems[pos], nil
	}
	return t.step(c, false)
}

// step moves the leaf position by one, crossing into the neighbouring leaf through
// the cursor stack when the current one is exhausted. The sibling link of the old
// leaf must agree with the leaf reached.
func (t *Tree) step(c *Cursor, forward bool) (word.Element, error) {
	leafLvl := c.depth - 1
	leaf, pos, err := t.leaf(c)
	if err != nil {
		return word.Element{}, err
	}

	if forward && pos+1 < len(leaf.Elems) {
		c.top().Pos = pos + 1
		c.key = leaf.Elems[pos+1].Key
		return leaf.Elems[pos+1], nil
	}
	if !forward && pos-1 >= 0 && pos-1 < len(leaf.Elems) {
		c.top().Pos = pos - 1
		c.key = leaf.Elems[pos-1].Key
		return leaf.Elems[pos-1], nil
	}

	// ascend to the nearest level that can move
	lvl := leafLvl - 1
	for ; lvl >= 0; lvl-- {
		n, err := t.read(c.path[lvl].Node)
		if err != nil {
			return word.Element{}, err
		}
		if forward && c.path[lvl].Pos+1 < len(n.Elems) {
			break
		}
		if !forward && c.path[lvl].Pos > 0 {
			break
		}
	}
	if lvl < 0 {
		if forward {
			return word.Element{}, dberror.Newf(dberror.KindNoNext, "after key %o", c.key)
		}
		return word.Element{}, dberror.Newf(dberror.KindNoPrev, "before key %o", c.key)
	}
	if forward {
		c.path[lvl].Pos++
	} else {
		c.path[lvl].Pos--
	}

	// descend along the leftmost (or rightmost) edge
	for l := lvl; l < leafLvl; l++ {
		n, err := t.read(c.path[l].Node)
		if err != nil {
			return word.Element{}, err
		}
		child, err := t.read(n.Elems[c.path[l].Pos].Ref)
		if err != nil {
			return word.Element{}, err
		}
		if len(child.Elems) == 0 {
			return word.Element{}, dberror.Newf(dberror.KindInternal, "empty metablock %s", child.Handle)
		}
		p := 0
		if !forward {
			p = len(child.Elems) - 1
		}
		c.path[l+1] = Frame{Node: child.Handle, Pos: p}
	}

	next, pos, err := t.leaf(c)
	if err != nil {
		return word.Element{}, err
	}
	link := leaf.Next
	if !forward {
		link = leaf.Prev
	}
	if link != next.Handle {
		return word.Element{}, dberror.Newf(dberror.KindInternal, "sibling chain of %s points at %s, path reached %s",
			leaf.Handle, link, next.Handle)
	}
	c.key = next.Elems[pos].Key
	return next.Elems[pos], nil
}
