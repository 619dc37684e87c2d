package mesh

import (
	"math/rand"

	"github.com/aukilabs/quadmesh/quadtree"
)

// NewBox returns a closed mesh made of the 12 triangles covering the faces of
// the cuboid.
func NewBox(c Cuboid) Mesh {
	a, b := c.Min, c.Max
	v := [8]Vec{
		{X: a.X, Y: a.Y, Z: a.Z},
		{X: b.X, Y: a.Y, Z: a.Z},
		{X: b.X, Y: b.Y, Z: a.Z},
		{X: a.X, Y: b.Y, Z: a.Z},
		{X: a.X, Y: a.Y, Z: b.Z},
		{X: b.X, Y: a.Y, Z: b.Z},
		{X: b.X, Y: b.Y, Z: b.Z},
		{X: a.X, Y: b.Y, Z: b.Z},
	}

	faces := [6][4]int{
		{0, 3, 2, 1}, // bottom
		{4, 5, 6, 7}, // top
		{0, 1, 5, 4}, // front
		{2, 3, 7, 6}, // back
		{0, 4, 7, 3}, // left
		{1, 2, 6, 5}, // right
	}

	m := Mesh{
		Name:      "box",
		Triangles: make([]Triangle, 0, 12),
	}
	for _, f := range faces {
		m.Triangles = append(m.Triangles,
			Triangle{v[f[0]], v[f[1]], v[f[2]]},
			Triangle{v[f[0]], v[f[2]], v[f[3]]},
		)
	}
	return m
}

// RandomSoup returns n small flat triangles scattered over the area. Each
// triangle is centered on a uniform random point with its vertices jittered
// by up to jitter on both axes.
func RandomSoup(rng *rand.Rand, n int, area quadtree.Region[float64], jitter float64) Mesh {
	m := Mesh{
		Name:      "soup",
		Triangles: make([]Triangle, 0, n),
	}

	for i := 0; i < n; i++ {
		cx := area.XMin + rng.Float64()*(area.XMax-area.XMin)
		cy := area.YMin + rng.Float64()*(area.YMax-area.YMin)

		var t Triangle
		for j := range t {
			t[j] = Vec{
				X: cx + (rng.Float64()*2-1)*jitter,
				Y: cy + (rng.Float64()*2-1)*jitter,
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m
}
