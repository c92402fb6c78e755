package btree

import (
	dberror "zonedb/pkg/error"
	"zonedb/pkg/word"
)

// Stats describes the shape of the tree.
type Stats struct {
	Depth   int
	Nodes   int
	Records int

	// Metablocks lists every secondary metablock; the root is not included.
	Metablocks []word.Handle

	// Refs lists every record handle in key order.
	Refs []word.Handle
}

// Verify walks the whole tree level by level and checks key order within and
// across nodes, first-key agreement between parents and children, sibling chains
// and the depth bound.
func (t *Tree) Verify() (Stats, error) {
	var st Stats
	root, err := t.Root()
	if err != nil {
		return st, err
	}
	level := []*Node{root}

	for len(level) > 0 {
		st.Depth++
		if st.Depth > MaxDepth {
			return st, dberror.Newf(dberror.KindInternal, "tree deeper than %d", MaxDepth)
		}

		leaf := level[0].IsLeaf()
		var next []*Node
		var last word.Word
		for i, n := range level {
			st.Nodes++
			if !n.IsRoot() {
				st.Metablocks = append(st.Metablocks, n.Handle)
				if len(n.Elems) == 0 {
					return st, dberror.Newf(dberror.KindInternal, "metablock %s is empty", n.Handle)
				}
			}
			if n.IsLeaf() != leaf {
				return st, dberror.Newf(dberror.KindInternal, "metablock %s: mixed leaf and internal level", n.Handle)
			}

			wantPrev, wantNext := word.NoHandle, word.NoHandle
			if i > 0 {
				wantPrev = level[i-1].Handle
			}
			if i+1 < len(level) {
				wantNext = level[i+1].Handle
			}
			if n.Prev != wantPrev || n.Next != wantNext {
				return st, dberror.Newf(dberror.KindInternal, "metablock %s: siblings %s/%s, want %s/%s",
					n.Handle, n.Prev, n.Next, wantPrev, wantNext)
			}

			for j, e := range n.Elems {
				if (i > 0 || j > 0) && e.Key <= last {
					return st, dberror.Newf(dberror.KindInternal, "metablock %s: key %o out of order", n.Handle, e.Key)
				}
				last = e.Key
				if e.Indirect == leaf {
					return st, dberror.Newf(dberror.KindInternal, "metablock %s: element %d has wrong kind", n.Handle, j)
				}
				if leaf {
					st.Records++
					st.Refs = append(st.Refs, e.Ref)
					continue
				}
				child, err := t.read(e.Ref)
				if err != nil {
					return st, err
				}
				if len(child.Elems) == 0 || child.FirstKey() != e.Key {
					return st, dberror.Newf(dberror.KindInternal, "metablock %s: element %d key %o does not match child %s",
						n.Handle, j, e.Key, child.Handle)
				}
				next = append(next, child)
			}
		}
		level = next
	}
	return st, nil
}
