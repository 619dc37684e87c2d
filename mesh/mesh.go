package mesh

import (
	"math"

	"github.com/aukilabs/quadmesh/quadtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangle is a mesh facet given by its three vertices.
type Triangle [3]Vec

// Within reports whether the triangle's projection on the xy plane lies in
// the region. Every vertex must be inside, boundaries included.
func (t Triangle) Within(r quadtree.Region[float64]) bool {
	for _, p := range t {
		if p.X < r.XMin || p.X > r.XMax || p.Y < r.YMin || p.Y > r.YMax {
			return false
		}
	}
	return true
}

// Bounds returns the smallest cuboid containing the triangle.
func (t Triangle) Bounds() Cuboid {
	c := Cuboid{Min: t[0], Max: t[0]}
	return c.expand(t[1]).expand(t[2])
}

// Normal returns the unit normal following the right-hand rule. Degenerate
// triangles return the zero vector.
func (t Triangle) Normal() Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	if l := r3.Norm(n); l != 0 {
		return r3.Scale(1/l, n)
	}
	return Vec{}
}

// Mesh is a triangle soup.
type Mesh struct {
	Name      string
	Triangles []Triangle
}

// Bounds returns the smallest cuboid containing every triangle. An empty mesh
// has an inverted infinite bounds.
func (m Mesh) Bounds() Cuboid {
	c := Cuboid{
		Min: Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
	for _, t := range m.Triangles {
		for _, p := range t {
			c = c.expand(p)
		}
	}
	return c
}
