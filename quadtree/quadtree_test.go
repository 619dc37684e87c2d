package quadtree

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

type box struct {
	ID                     int
	XMin, XMax, YMin, YMax float64
}

func (b box) Within(r Region[float64]) bool {
	return b.XMin >= r.XMin && b.XMax <= r.XMax &&
		b.YMin >= r.YMin && b.YMax <= r.YMax
}

func boxAt(id int, x, y, halfSize float64) box {
	return box{
		ID:   id,
		XMin: x - halfSize,
		XMax: x + halfSize,
		YMin: y - halfSize,
		YMax: y + halfSize,
	}
}

// explosive panics when asked about a region narrower than the root used in
// the tests.
type explosive struct {
	box
	armed bool
}

func (e explosive) Within(r Region[float64]) bool {
	if e.armed && r.XMax-r.XMin < 10 {
		panic("boom")
	}
	return e.box.Within(r)
}

func ids(shapes []box) []int {
	res := make([]int, len(shapes))
	for i, s := range shapes {
		res[i] = s.ID
	}
	return res
}

func randomBoxes(rng *rand.Rand, n int) []box {
	boxes := make([]box, n)
	for i := range boxes {
		boxes[i] = boxAt(i, 0.5+rng.Float64()*9, 0.5+rng.Float64()*9, rng.Float64()*0.4)
	}
	return boxes
}

func newTestTree() *Tree[float64, box] {
	return FromBounds[float64, box](0, 10, 0, 10)
}

func TestNewWithOptions(t *testing.T) {
	region := NewRegion(0.0, 10.0, 0.0, 10.0)

	t.Run("defaults", func(t *testing.T) {
		tree, err := NewWithOptions[float64, box](region, Options[float64]{})
		require.NoError(t, err)
		require.Equal(t, DefaultCapacity, tree.capacity)
		require.Zero(t, tree.maxDepth)
		require.True(t, tree.IsLeaf())
		require.Equal(t, region, tree.Region())
	})

	t.Run("negative capacity", func(t *testing.T) {
		tree, err := NewWithOptions[float64, box](region, Options[float64]{Capacity: -1})
		require.Error(t, err)
		require.Nil(t, tree)
		require.Equal(t, ErrTypeInvalidOptions, errors.Type(err))
	})

	t.Run("negative max depth", func(t *testing.T) {
		_, err := NewWithOptions[float64, box](region, Options[float64]{MaxDepth: -3})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidOptions))
	})
}

func TestTreeInsert(t *testing.T) {
	t.Run("out of bounds shape is rejected", func(t *testing.T) {
		tree := newTestTree()
		for i := 0; i < 25; i++ {
			require.True(t, tree.Insert(boxAt(i, 1+float64(i)/3, 2, 0.1)))
		}
		before := tree.Len()
		stats := tree.Stats()

		require.False(t, tree.Insert(boxAt(100, -1, -1, 0.1)))
		require.False(t, tree.Insert(boxAt(101, 9.95, 5, 0.1)))
		require.Equal(t, before, tree.Len())
		require.Equal(t, stats, tree.Stats())
	})

	t.Run("leaf fills up to capacity", func(t *testing.T) {
		tree := newTestTree()
		for i := 0; i < DefaultCapacity; i++ {
			require.True(t, tree.Insert(boxAt(i, 7, 7, 0.1)))
		}
		require.True(t, tree.IsLeaf())
		require.Len(t, tree.elements, DefaultCapacity)
	})

	t.Run("inserted shapes satisfy the root predicate", func(t *testing.T) {
		tree := newTestTree()
		rng := rand.New(rand.NewSource(3))

		for _, b := range randomBoxes(rng, 500) {
			require.True(t, tree.Insert(b))
		}
		require.Equal(t, 500, tree.Len())

		var walk func(n *Tree[float64, box])
		walk = func(n *Tree[float64, box]) {
			for _, e := range n.elements {
				require.True(t, e.Within(tree.Region()))
				require.True(t, e.Within(n.region))
			}
			if n.IsLeaf() {
				return
			}
			for _, c := range n.children {
				require.NotNil(t, c)
				walk(c)
			}
		}
		walk(tree)
	})

	t.Run("overflow bucket only holds shapes that fit no child", func(t *testing.T) {
		tree := newTestTree()
		rng := rand.New(rand.NewSource(4))
		for _, b := range randomBoxes(rng, 300) {
			tree.Insert(b)
		}

		var walk func(n *Tree[float64, box])
		walk = func(n *Tree[float64, box]) {
			if n.IsLeaf() {
				require.LessOrEqual(t, len(n.elements), DefaultCapacity)
				return
			}
			for _, e := range n.elements {
				for _, c := range n.children {
					require.False(t, e.Within(c.region))
				}
			}
			for _, c := range n.children {
				walk(c)
			}
		}
		walk(tree)
	})

	t.Run("first fit by child order", func(t *testing.T) {
		tree := newTestTree()
		for i := 0; i <= DefaultCapacity; i++ {
			tree.Insert(boxAt(i, 2, 2, 0.1))
		}
		require.False(t, tree.IsLeaf())

		// Degenerate on both midlines: every quadrant accepts it, the
		// north-east one is tried first.
		center := box{ID: 99, XMin: 5, XMax: 5, YMin: 5, YMax: 5}
		require.True(t, tree.Insert(center))
		require.Equal(t, []int{99}, ids(tree.children[0].elements))
		require.Empty(t, tree.elements)
	})
}

func TestTreeSubdivision(t *testing.T) {
	tree := newTestTree()

	shapes := []box{
		boxAt(0, 5, 5, 1), // straddles both midlines
		boxAt(1, 7, 7, 0.2),
		boxAt(2, 8, 6, 0.2),
		boxAt(3, 6, 9, 0.2),
		boxAt(4, 2, 7, 0.2),
		boxAt(5, 3, 8, 0.2),
		boxAt(6, 1, 6, 0.2),
		boxAt(7, 2, 2, 0.2),
		boxAt(8, 3, 1, 0.2),
		boxAt(9, 7, 2, 0.2),
		boxAt(10, 8, 3, 0.2),
	}
	require.Len(t, shapes, DefaultCapacity+1)

	for i, s := range shapes {
		require.True(t, tree.Insert(s))
		if i < DefaultCapacity {
			require.True(t, tree.IsLeaf())
		}
	}

	require.False(t, tree.IsLeaf())
	require.Equal(t, tree.region.Quadrants(), [4]Region[float64]{
		tree.children[0].region,
		tree.children[1].region,
		tree.children[2].region,
		tree.children[3].region,
	})
	for _, c := range tree.children {
		require.True(t, c.IsLeaf(), "exactly one subdivision")
		require.Equal(t, 1, c.depth)
	}

	require.Equal(t, []int{0}, ids(tree.elements))
	require.Equal(t, []int{1, 2, 3}, ids(tree.children[0].elements))
	require.Equal(t, []int{4, 5, 6}, ids(tree.children[1].elements))
	require.Equal(t, []int{7, 8}, ids(tree.children[2].elements))
	require.Equal(t, []int{9, 10}, ids(tree.children[3].elements))

	t.Run("shapes are conserved across point queries", func(t *testing.T) {
		reached := len(tree.elements)
		for _, p := range [][2]float64{{7.5, 7.5}, {2.5, 7.5}, {2.5, 2.5}, {7.5, 2.5}} {
			found := slices.Collect(tree.Query(p[0], p[1]))
			reached += len(found) - len(tree.elements)
		}
		require.Equal(t, DefaultCapacity+1, reached)
		require.Equal(t, DefaultCapacity+1, tree.Len())
	})
}

func TestTreeClusterNearPoint(t *testing.T) {
	tree := newTestTree()

	var shapes []box
	for i := 0; i <= DefaultCapacity; i++ {
		shapes = append(shapes, boxAt(i, 1, 1, 0.07+0.002*float64(i)))
	}
	for _, s := range shapes {
		require.True(t, tree.Insert(s))
	}
	require.False(t, tree.IsLeaf())

	found := slices.Collect(tree.Query(1, 1))
	require.ElementsMatch(t, ids(shapes), ids(found))
}

func TestTreeMaxDepth(t *testing.T) {
	tree, err := NewWithOptions[float64, box](
		NewRegion(0.0, 10.0, 0.0, 10.0),
		Options[float64]{Capacity: 1, MaxDepth: 2},
	)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.True(t, tree.Insert(box{ID: i, XMin: 1, XMax: 1, YMin: 1, YMax: 1}))
	}

	stats := tree.Stats()
	require.Equal(t, 2, stats.Depth)
	require.Equal(t, 20, stats.Elements)
	require.Equal(t, 20, stats.LargestBucket)
	require.Len(t, slices.Collect(tree.Query(1.5, 1.5)), 20)
}

func TestTreeSplitPanicLeavesNodeUnchanged(t *testing.T) {
	tree := FromBounds[float64, explosive](0, 10, 0, 10)

	for i := 0; i < DefaultCapacity; i++ {
		require.True(t, tree.Insert(explosive{box: boxAt(i, 2, 2, 0.1)}))
	}

	require.Panics(t, func() {
		tree.Insert(explosive{box: boxAt(42, 3, 3, 0.1), armed: true})
	})
	require.True(t, tree.IsLeaf())
	require.Equal(t, DefaultCapacity, tree.Len())
	for _, e := range tree.elements {
		require.False(t, e.armed)
	}
}

func TestTreeClear(t *testing.T) {
	tree := newTestTree()
	rng := rand.New(rand.NewSource(5))
	for _, b := range randomBoxes(rng, 200) {
		tree.Insert(b)
	}
	require.False(t, tree.IsLeaf())

	tree.Clear()
	require.True(t, tree.IsLeaf())
	require.Zero(t, tree.Len())
	require.Equal(t, NewRegion(0.0, 10.0, 0.0, 10.0), tree.Region())

	for i := 0; i < 50; i++ {
		x, y := rng.Float64()*10, rng.Float64()*10
		require.True(t, tree.BeginAt(x, y).Equal(tree.End()))
	}

	t.Run("tree is usable after clear", func(t *testing.T) {
		require.True(t, tree.Insert(boxAt(1, 4, 4, 0.5)))
		require.Equal(t, []int{1}, ids(slices.Collect(tree.Query(4, 4))))
	})
}

func TestTreeClone(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	a := newTestTree()
	for _, b := range randomBoxes(rng, 400) {
		a.Insert(b)
	}

	points := make([][2]float64, 40)
	for i := range points {
		points[i] = [2]float64{0.1 + rng.Float64()*9.8, 0.1 + rng.Float64()*9.8}
	}

	snapshot := func(tree *Tree[float64, box]) [][]int {
		res := make([][]int, len(points))
		for i, p := range points {
			res[i] = ids(slices.Collect(tree.Query(p[0], p[1])))
		}
		return res
	}

	before := snapshot(a)
	b := a.Clone()
	require.Equal(t, before, snapshot(b))
	require.Equal(t, a.Stats(), b.Stats())

	t.Run("mutating the clone leaves the source intact", func(t *testing.T) {
		for _, s := range randomBoxes(rng, 100) {
			b.Insert(s)
		}
		require.Equal(t, before, snapshot(a))

		b.Clear()
		require.Equal(t, before, snapshot(a))
		require.Equal(t, 400, a.Len())
	})

	t.Run("mutating the source leaves the clone intact", func(t *testing.T) {
		c := a.Clone()
		a.Clear()
		require.Equal(t, before, snapshot(c))
	})
}

func TestTreeStats(t *testing.T) {
	tree := newTestTree()
	require.Equal(t, Stats{Nodes: 1, Leaves: 1}, tree.Stats())

	for i := 0; i <= DefaultCapacity; i++ {
		tree.Insert(boxAt(i, 7, 7, 0.1))
	}

	stats := tree.Stats()
	require.Equal(t, DefaultCapacity+1, stats.Elements)
	require.GreaterOrEqual(t, stats.Depth, 1)
	require.Equal(t, stats.Nodes, 1+4*(stats.Nodes-stats.Leaves))
}
