package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the tolerance used by ray/triangle intersection.
const Epsilon = 0.00001

// Vec is a point or direction in 3D space.
type Vec = r3.Vec

func EqualWithEpsilon(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func VecEqualWithEpsilon(a, b Vec, epsilon float64) bool {
	return EqualWithEpsilon(a.X, b.X, epsilon) &&
		EqualWithEpsilon(a.Y, b.Y, epsilon) &&
		EqualWithEpsilon(a.Z, b.Z, epsilon)
}

// Cuboid is an axis-aligned box.
type Cuboid struct {
	Min Vec `json:"min"`
	Max Vec `json:"max"`
}

func (c Cuboid) Size() Vec {
	return r3.Sub(c.Max, c.Min)
}

// Contains reports whether p is inside the cuboid, boundaries included.
func (c Cuboid) Contains(p Vec) bool {
	return p.X >= c.Min.X && p.X <= c.Max.X &&
		p.Y >= c.Min.Y && p.Y <= c.Max.Y &&
		p.Z >= c.Min.Z && p.Z <= c.Max.Z
}

// IsDegenerate reports whether the cuboid is flat, inverted or not finite on
// any axis.
func (c Cuboid) IsDegenerate() bool {
	if !IsFinite(c.Min) || !IsFinite(c.Max) {
		return true
	}
	return c.Max.X <= c.Min.X || c.Max.Y <= c.Min.Y || c.Max.Z <= c.Min.Z
}

// IsFinite reports whether no coordinate of v is NaN or infinite.
func IsFinite(v Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (c Cuboid) expand(p Vec) Cuboid {
	return Cuboid{
		Min: Vec{X: math.Min(c.Min.X, p.X), Y: math.Min(c.Min.Y, p.Y), Z: math.Min(c.Min.Z, p.Z)},
		Max: Vec{X: math.Max(c.Max.X, p.X), Y: math.Max(c.Max.Y, p.Y), Z: math.Max(c.Max.Z, p.Z)},
	}
}

// Ray is a half-line starting at Origin.
type Ray struct {
	Origin Vec
	Dir    Vec
}

// IntersectTriangle tests the ray against the triangle with the
// Moeller-Trumbore algorithm. It returns whether the triangle is hit in front
// of the origin and the ray parameter of the hit.
func IntersectTriangle(r Ray, tri Triangle) (bool, float64) {
	edge1 := r3.Sub(tri[1], tri[0])
	edge2 := r3.Sub(tri[2], tri[0])

	pVec := r3.Cross(r.Dir, edge2)
	det := r3.Dot(edge1, pVec)
	if det > -Epsilon && det < Epsilon {
		// parallel to the triangle plane
		return false, -1
	}
	invDet := 1 / det

	tVec := r3.Sub(r.Origin, tri[0])
	u := r3.Dot(tVec, pVec) * invDet
	if u < 0 || u > 1 {
		return false, -1
	}

	qVec := r3.Cross(tVec, edge1)
	v := r3.Dot(r.Dir, qVec) * invDet
	if v < 0 || u+v > 1 {
		return false, -1
	}

	t := r3.Dot(edge2, qVec) * invDet
	if t > Epsilon {
		return true, t
	}
	return false, -1
}
