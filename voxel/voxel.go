// Package voxel classifies the points of a regular lattice as inside or
// outside a closed triangle mesh.
//
// Triangles are indexed by their xy footprint in a quadtree. A point is
// classified by casting a ray toward +z and counting the candidate triangles
// it crosses: an odd count means the point is inside the mesh.
package voxel

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/quadtree"
)

// DefaultMaxDepth is the quadtree depth limit used for untrusted meshes.
// Triangles with coincident footprints would otherwise subdivide forever.
const DefaultMaxDepth = 32

// Options alters the behaviour of a Voxelizer.
type Options struct {
	// The quadtree leaf capacity. Zero means quadtree.DefaultCapacity.
	Capacity int

	// The quadtree depth limit. Zero means unbounded.
	MaxDepth int

	// The largest number of lattice points. Zero means
	// DefaultMaxLatticeSize.
	MaxLatticeSize int

	// Logs the nodes visited by each point query.
	Trace bool
}

// Voxelizer samples a mesh over a lattice spanning the given bounds.
//
// A Voxelizer is immutable once created and can be queried concurrently.
type Voxelizer struct {
	mesh     mesh.Mesh
	bounds   mesh.Cuboid
	lattice  Lattice
	tree     *quadtree.Tree[float64, mesh.Triangle]
	rejected int
}

// New indexes the mesh triangles and returns a voxelizer sampling the bounds.
// Triangles whose footprint is not within the bounds are left out.
func New(m mesh.Mesh, bounds mesh.Cuboid, lattice Lattice, opts Options) (*Voxelizer, error) {
	maxLatticeSize := opts.MaxLatticeSize
	if maxLatticeSize <= 0 {
		maxLatticeSize = DefaultMaxLatticeSize
	}
	if err := lattice.CheckSize(maxLatticeSize); err != nil {
		return nil, err
	}

	if bounds.IsDegenerate() {
		return nil, errors.New("voxelization bounds are degenerate").
			WithType(ErrTypeInvalidBounds).
			WithTag("min", bounds.Min).
			WithTag("max", bounds.Max)
	}

	treeOpts := quadtree.Options[float64]{
		Capacity: opts.Capacity,
		MaxDepth: opts.MaxDepth,
	}
	if opts.Trace {
		treeOpts.Tracer = quadtree.LogTracer[float64]()
	}

	tree, err := quadtree.NewWithOptions[float64, mesh.Triangle](
		quadtree.NewRegion(bounds.Min.X, bounds.Max.X, bounds.Min.Y, bounds.Max.Y),
		treeOpts,
	)
	if err != nil {
		return nil, errors.New("creating quadtree failed").Wrap(err)
	}

	v := &Voxelizer{
		mesh:    m,
		bounds:  bounds,
		lattice: lattice,
		tree:    tree,
	}

	for i, t := range m.Triangles {
		if !tree.Insert(t) {
			v.rejected++
			logs.WithTag("mesh", m.Name).
				WithTag("triangle", i).
				Debug("triangle outside voxelization bounds")
		}
	}

	if v.rejected != 0 {
		logs.WithTag("mesh", m.Name).
			WithTag("rejected", v.rejected).
			WithTag("triangles", len(m.Triangles)).
			Warn("triangles outside voxelization bounds were ignored")
	}

	instrumentTriangles(m.Name, len(m.Triangles)-v.rejected, v.rejected)
	return v, nil
}

// Mesh returns the voxelized mesh.
func (v *Voxelizer) Mesh() mesh.Mesh {
	return v.mesh
}

// Bounds returns the sampled space.
func (v *Voxelizer) Bounds() mesh.Cuboid {
	return v.bounds
}

// Lattice returns the sampling resolution.
func (v *Voxelizer) Lattice() Lattice {
	return v.lattice
}

// Rejected returns the number of triangles left out of the index.
func (v *Voxelizer) Rejected() int {
	return v.rejected
}

// Stats returns the shape of the triangle index.
func (v *Voxelizer) Stats() quadtree.Stats {
	return v.tree.Stats()
}

// Origin returns the position of a lattice point.
func (v *Voxelizer) Origin(px, py, pz int) mesh.Vec {
	size := v.bounds.Size()
	return mesh.Vec{
		X: float64(px)/float64(v.lattice.NX)*size.X + v.bounds.Min.X,
		Y: float64(py)/float64(v.lattice.NY)*size.Y + v.bounds.Min.Y,
		Z: float64(pz)/float64(v.lattice.NZ)*size.Z + v.bounds.Min.Z,
	}
}

// Candidates returns the triangles a point query yields at (x, y), in query
// order. They include every indexed triangle whose footprint strictly
// contains the point.
func (v *Voxelizer) Candidates(x, y float64) []mesh.Triangle {
	var res []mesh.Triangle
	for t := range v.tree.Query(x, y) {
		res = append(res, t)
	}
	instrumentCandidates(v.mesh.Name, len(res))
	return res
}

// Hits returns the number of candidate triangles crossed by a ray cast from
// origin toward +z.
func (v *Voxelizer) Hits(origin mesh.Vec) int {
	var hits int
	for t := range v.tree.Query(origin.X, origin.Y) {
		if hit, _ := mesh.IntersectTriangle(upRay(origin), t); hit {
			hits++
		}
	}
	return hits
}

// ClassifyPoint returns Wall when the point is inside the mesh.
func (v *Voxelizer) ClassifyPoint(p mesh.Vec) Flag {
	f, _ := v.ClassifyHits(p)
	return f
}

// ClassifyHits returns the flag of the point along with the hit count it was
// derived from.
func (v *Voxelizer) ClassifyHits(p mesh.Vec) (Flag, int) {
	hits := v.Hits(p)
	f := flagOf(hits)
	instrumentClassifications(v.mesh.Name, f, 1)
	return f, hits
}

// Classify returns the flag of a lattice point.
func (v *Voxelizer) Classify(px, py, pz int) Flag {
	return v.ClassifyPoint(v.Origin(px, py, pz))
}

// Result is the outcome of a full lattice sweep.
type Result struct {
	Lattice  Lattice       `json:"lattice"`
	Flags    []Flag        `json:"-"`
	Walls    int           `json:"walls"`
	Empty    int           `json:"empty"`
	Duration time.Duration `json:"duration"`
}

// At returns the flag of a lattice point.
func (r Result) At(px, py, pz int) Flag {
	return r.Flags[r.Lattice.Index(px, py, pz)]
}

// Voxelize classifies every lattice point. Each lattice column shares one
// point query. It stops between columns when the context is done.
func (v *Voxelizer) Voxelize(ctx context.Context) (Result, error) {
	start := time.Now()
	defer instrumentSweepLatency(v.mesh.Name, start)

	l := v.lattice
	res := Result{
		Lattice: l,
		Flags:   make([]Flag, l.Size()),
	}

	for py := 0; py < l.NY; py++ {
		for px := 0; px < l.NX; px++ {
			if err := ctx.Err(); err != nil {
				return Result{}, errors.New("voxelization interrupted").
					WithTag("mesh", v.mesh.Name).
					WithTag("row", py).
					Wrap(err)
			}

			column := v.Origin(px, py, 0)
			candidates := v.Candidates(column.X, column.Y)

			for pz := 0; pz < l.NZ; pz++ {
				origin := v.Origin(px, py, pz)

				var hits int
				for _, t := range candidates {
					if hit, _ := mesh.IntersectTriangle(upRay(origin), t); hit {
						hits++
					}
				}

				f := flagOf(hits)
				res.Flags[l.Index(px, py, pz)] = f
				if f == Wall {
					res.Walls++
				}
			}
		}
	}

	res.Empty = len(res.Flags) - res.Walls
	res.Duration = time.Since(start)

	instrumentClassifications(v.mesh.Name, Wall, res.Walls)
	instrumentClassifications(v.mesh.Name, Empty, res.Empty)

	logs.WithTag("mesh", v.mesh.Name).
		WithTag("lattice", l.String()).
		WithTag("walls", res.Walls).
		WithTag("duration", res.Duration).
		Debug("lattice voxelized")
	return res, nil
}

func upRay(origin mesh.Vec) mesh.Ray {
	return mesh.Ray{
		Origin: origin,
		Dir:    mesh.Vec{Z: 1},
	}
}

func flagOf(hits int) Flag {
	if hits%2 == 1 {
		return Wall
	}
	return Empty
}
