package quadtree

import "iter"

// Cursor walks the shapes stored along the path of nodes covering a point,
// from the root down. Each node's shapes come out in insertion order before
// the cursor descends into the single child covering the point.
//
// The zero Cursor is the end cursor.
type Cursor[T Number, S Boundable[T]] struct {
	x, y T
	node *Tree[T, S]
	pos  int
}

// BeginAt returns a cursor over the shapes near (x, y). The cursor is already
// done when the tree does not cover the point.
func (t *Tree[T, S]) BeginAt(x, y T) Cursor[T, S] {
	if !t.CoversPoint(x, y) {
		return Cursor[T, S]{}
	}

	c := Cursor[T, S]{
		x:    x,
		y:    y,
		node: t,
	}
	c.skipEmpty()
	return c
}

// End returns the cursor every exhausted query compares equal to.
func (t *Tree[T, S]) End() Cursor[T, S] {
	return Cursor[T, S]{}
}

// Query returns the shapes near (x, y) as a sequence. Each iteration starts a
// new cursor.
func (t *Tree[T, S]) Query(x, y T) iter.Seq[S] {
	return func(yield func(S) bool) {
		for c := t.BeginAt(x, y); !c.Done(); c.Next() {
			if !yield(c.Value()) {
				return
			}
		}
	}
}

// Done reports whether the cursor is exhausted.
func (c Cursor[T, S]) Done() bool {
	return c.node == nil
}

// Value returns the current shape. It panics when the cursor is done.
func (c Cursor[T, S]) Value() S {
	return c.node.elements[c.pos]
}

// Next moves the cursor to the next shape. It is a no-op on a done cursor.
func (c *Cursor[T, S]) Next() {
	if c.node == nil {
		return
	}

	c.pos++
	c.skipEmpty()
}

// Equal reports whether both cursors are at the same position of the same
// node.
func (c Cursor[T, S]) Equal(o Cursor[T, S]) bool {
	return c.node == o.node && c.pos == o.pos
}

func (c *Cursor[T, S]) skipEmpty() {
	for c.node != nil && c.pos == len(c.node.elements) {
		c.nextNode()
	}
}

// nextNode descends into the child covering the point. The cursor ends at a
// leaf, and also when the point sits on a midline that no child covers.
func (c *Cursor[T, S]) nextNode() {
	n := c.node
	if n.tracer != nil {
		n.tracer(Observation[T]{
			Elements: len(n.elements),
			Region:   n.region,
			Depth:    n.depth,
		})
	}

	c.node = nil
	c.pos = 0

	if n.IsLeaf() {
		return
	}

	for _, child := range n.children {
		if child.CoversPoint(c.x, c.y) {
			c.node = child
			return
		}
	}
}
