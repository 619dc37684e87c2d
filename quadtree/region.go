package quadtree

import "fmt"

// Number is the set of coordinate types a Region can be expressed in.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Region is an axis-aligned rectangle. Bounds are not checked: a region with
// XMin > XMax or YMin > YMax is a caller error.
type Region[T Number] struct {
	XMin, XMax, YMin, YMax T
}

func NewRegion[T Number](xMin, xMax, yMin, yMax T) Region[T] {
	return Region[T]{
		XMin: xMin,
		XMax: xMax,
		YMin: yMin,
		YMax: yMax,
	}
}

// CoversPoint reports whether the point lies strictly inside the region.
// Points on an edge are never covered.
func (r Region[T]) CoversPoint(x, y T) bool {
	return x > r.XMin && x < r.XMax && y > r.YMin && y < r.YMax
}

// Center returns the horizontal and vertical midpoints of the region. Integer
// midpoints are truncated toward zero and never overflow.
func (r Region[T]) Center() (T, T) {
	return midpoint(r.XMin, r.XMax), midpoint(r.YMin, r.YMax)
}

// midpoint halves each bound before adding them. The remainders are zero for
// floats.
func midpoint[T Number](a, b T) T {
	ra, rb := a-a/2*2, b-b/2*2
	return a/2 + b/2 + (ra+rb)/2
}

// Quadrants splits the region at its center. The quadrants share the
// midlines as edges and are returned in a fixed order: north-east,
// north-west, south-west, south-east.
func (r Region[T]) Quadrants() [4]Region[T] {
	cx, cy := r.Center()

	return [4]Region[T]{
		{XMin: cx, XMax: r.XMax, YMin: cy, YMax: r.YMax},
		{XMin: r.XMin, XMax: cx, YMin: cy, YMax: r.YMax},
		{XMin: r.XMin, XMax: cx, YMin: r.YMin, YMax: cy},
		{XMin: cx, XMax: r.XMax, YMin: r.YMin, YMax: cy},
	}
}

func (r Region[T]) String() string {
	return fmt.Sprintf("[%v %v %v %v]", r.XMin, r.XMax, r.YMin, r.YMax)
}
