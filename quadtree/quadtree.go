package quadtree

import (
	"slices"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// DefaultCapacity is the number of shapes a leaf holds before the next one
	// makes it subdivide. Internal nodes hold any number of shapes that
	// straddle their midlines.
	DefaultCapacity = 10

	ErrTypeInvalidOptions = "quadtree_invalid_options"
)

// Boundable is implemented by shapes stored in a Tree. Within reports whether
// the shape is fully contained in the region. It must stay consistent under
// subdivision: a shape within a quadrant is also within its parent.
type Boundable[T Number] interface {
	Within(Region[T]) bool
}

// Options alters the behaviour of a Tree.
type Options[T Number] struct {
	// The number of shapes a leaf holds. The next shape makes it subdivide.
	// Zero means DefaultCapacity.
	Capacity int

	// The depth below which leaves stop subdividing. Zero means unbounded.
	MaxDepth int

	// Receives an observation each time a point query leaves a node.
	Tracer Tracer[T]
}

func (o Options[T]) validate() error {
	if o.Capacity < 0 {
		return errors.New("capacity must not be negative").
			WithType(ErrTypeInvalidOptions).
			WithTag("capacity", o.Capacity)
	}

	if o.MaxDepth < 0 {
		return errors.New("max depth must not be negative").
			WithType(ErrTypeInvalidOptions).
			WithTag("max_depth", o.MaxDepth)
	}

	return nil
}

// Tree is a region quadtree holding shapes of type S. Each node stores the
// shapes that fit its region but none of its quadrants, and owns either zero
// or four children.
//
// A Tree is not safe for concurrent use when it is modified. Concurrent point
// queries on a tree that is not being modified are fine.
type Tree[T Number, S Boundable[T]] struct {
	region   Region[T]
	elements []S
	children [4]*Tree[T, S]

	depth    int
	capacity int
	maxDepth int
	tracer   Tracer[T]
}

// New creates an empty tree covering the given region with default options.
func New[T Number, S Boundable[T]](region Region[T]) *Tree[T, S] {
	return &Tree[T, S]{
		region:   region,
		capacity: DefaultCapacity,
	}
}

// FromBounds creates an empty tree covering [xMin, xMax] x [yMin, yMax].
func FromBounds[T Number, S Boundable[T]](xMin, xMax, yMin, yMax T) *Tree[T, S] {
	return New[T, S](NewRegion(xMin, xMax, yMin, yMax))
}

// NewWithOptions creates an empty tree covering the given region.
func NewWithOptions[T Number, S Boundable[T]](region Region[T], opts Options[T]) (*Tree[T, S], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	return &Tree[T, S]{
		region:   region,
		capacity: capacity,
		maxDepth: opts.MaxDepth,
		tracer:   opts.Tracer,
	}, nil
}

// Region returns the region covered by the node.
func (t *Tree[T, S]) Region() Region[T] {
	return t.region
}

// Insert adds a shape to the tree. It returns false, leaving the tree
// untouched, when the shape does not fit the tree's region.
//
// Shapes are placed in the first child, in quadrant order, that accepts
// them. A shape that fits no child stays at the node.
func (t *Tree[T, S]) Insert(shape S) bool {
	if !t.CanContain(shape) {
		return false
	}

	if t.IsLeaf() {
		if len(t.elements) < t.capacity || !t.canSplit() {
			t.elements = append(t.elements, shape)
		} else {
			t.split(shape)
		}
		return true
	}

	for _, child := range t.children {
		if child.Insert(shape) {
			return true
		}
	}

	t.elements = append(t.elements, shape)
	return true
}

func (t *Tree[T, S]) canSplit() bool {
	return t.maxDepth == 0 || t.depth < t.maxDepth
}

// split turns a full leaf into an internal node and places the leaf's shapes
// plus extra. The replacement is built aside and assigned in one step so a
// panicking Within leaves the node as it was.
func (t *Tree[T, S]) split(extra S) {
	next := Tree[T, S]{
		region:   t.region,
		depth:    t.depth,
		capacity: t.capacity,
		maxDepth: t.maxDepth,
		tracer:   t.tracer,
	}

	for i, quadrant := range t.region.Quadrants() {
		next.children[i] = &Tree[T, S]{
			region:   quadrant,
			depth:    t.depth + 1,
			capacity: t.capacity,
			maxDepth: t.maxDepth,
			tracer:   t.tracer,
		}
	}

	for _, e := range append(slices.Clip(t.elements), extra) {
		next.Insert(e)
	}

	*t = next
}

// Clear removes every shape and child. The node becomes an empty leaf over
// the same region.
func (t *Tree[T, S]) Clear() {
	t.elements = nil
	t.children = [4]*Tree[T, S]{}
}

// CanContain reports whether the shape fits the node's region.
func (t *Tree[T, S]) CanContain(shape S) bool {
	return shape.Within(t.region)
}

// CoversPoint reports whether the point lies strictly inside the node's
// region.
func (t *Tree[T, S]) CoversPoint(x, y T) bool {
	return t.region.CoversPoint(x, y)
}

// IsLeaf reports whether the node has no children.
func (t *Tree[T, S]) IsLeaf() bool {
	return t.children[0] == nil
}

// Clone returns a deep copy of the tree. Shapes are copied by value.
func (t *Tree[T, S]) Clone() *Tree[T, S] {
	c := *t
	c.elements = slices.Clone(t.elements)

	if !t.IsLeaf() {
		for i, child := range t.children {
			c.children[i] = child.Clone()
		}
	}
	return &c
}

// Len returns the number of shapes stored in the tree.
func (t *Tree[T, S]) Len() int {
	n := len(t.elements)
	if !t.IsLeaf() {
		for _, child := range t.children {
			n += child.Len()
		}
	}
	return n
}
