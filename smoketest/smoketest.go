// Package smoketest exercises a quadtree end to end with a random triangle
// soup: insertion, deep copy, point queries and clearing.
package smoketest

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/quadtree"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultTriangles = 100
	DefaultJitter    = 0.1

	// MaxTriangles is the largest soup a run generates.
	MaxTriangles = 100000
)

var area = quadtree.NewRegion(0.0, 10.0, 0.0, 10.0)

type Options struct {
	// The number of random triangles. Zero means DefaultTriangles. Runs are
	// limited to MaxTriangles.
	Triangles int `json:"triangles"`

	// The random seed. Zero means a time based seed.
	Seed int64 `json:"seed"`

	// The maximum distance between a triangle vertex and its center. Zero
	// means DefaultJitter.
	Jitter float64 `json:"jitter"`

	// Called with the results of runs started by HandleSmokeTest.
	SendResult func(context.Context, Results) error `json:"-"`
}

type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

type Results struct {
	Seed      int64          `json:"seed"`
	Triangles int            `json:"triangles"`
	Inserted  int            `json:"inserted"`
	Index     quadtree.Stats `json:"index"`
	Checks    []Check        `json:"checks"`
	Passed    bool           `json:"passed"`
	Duration  time.Duration  `json:"duration"`
}

func (r *Results) check(name string, err error) {
	c := Check{
		Name:   name,
		Passed: err == nil,
	}
	if err != nil {
		c.Error = err.Error()
	}
	r.Checks = append(r.Checks, c)
}

// Run inserts a random soup in a tree covering [0, 10] x [0, 10], clones the
// tree, queries both, clears the original and queries both again.
func Run(ctx context.Context, opts Options) Results {
	start := time.Now()

	if opts.Triangles <= 0 {
		opts.Triangles = DefaultTriangles
	}
	opts.Triangles = min(opts.Triangles, MaxTriangles)
	if opts.Jitter <= 0 {
		opts.Jitter = DefaultJitter
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	res := Results{
		Seed:      opts.Seed,
		Triangles: opts.Triangles,
	}

	soup := mesh.RandomSoup(rand.New(rand.NewSource(opts.Seed)), opts.Triangles, area, opts.Jitter)
	tree := quadtree.New[float64, mesh.Triangle](area)

	var inserted []mesh.Triangle
	var misplaced int
	for _, t := range soup.Triangles {
		if tree.Insert(t) {
			inserted = append(inserted, t)
		} else if t.Within(area) {
			misplaced++
		}
	}
	res.Inserted = len(inserted)
	res.Index = tree.Stats()

	res.check("insert", func() error {
		if misplaced != 0 {
			return errors.New("triangles within the tree region were rejected").
				WithTag("count", misplaced)
		}
		if n := tree.Len(); n != len(inserted) {
			return errors.New("tree size does not match insertions").
				WithTag("len", n).
				WithTag("inserted", len(inserted))
		}
		return nil
	}())

	res.check("reachable", func() error {
		for i, t := range inserted {
			if err := ctx.Err(); err != nil {
				return errors.New("smoke test interrupted").Wrap(err)
			}

			x, y := centroid(t)
			if !yields(tree, x, y, t) {
				return errors.New("inserted triangle is not yielded at its centroid").
					WithTag("triangle", i).
					WithTag("x", x).
					WithTag("y", y)
			}
		}
		return nil
	}())

	clone := tree.Clone()
	queries := make([][2]float64, 0, len(inserted))
	before := make([]int, 0, len(inserted))
	for _, t := range inserted {
		x, y := centroid(t)
		queries = append(queries, [2]float64{x, y})
		before = append(before, count(clone, x, y))
	}

	tree.Clear()

	res.check("clone unaffected by clear", func() error {
		if clone.Len() != len(inserted) {
			return errors.New("clone lost triangles").
				WithTag("len", clone.Len()).
				WithTag("inserted", len(inserted))
		}
		for i, q := range queries {
			if n := count(clone, q[0], q[1]); n != before[i] {
				return errors.New("clone query changed after clear").
					WithTag("x", q[0]).
					WithTag("y", q[1]).
					WithTag("before", before[i]).
					WithTag("after", n)
			}
		}
		return nil
	}())

	res.check("cleared tree is empty", func() error {
		if !tree.IsLeaf() || tree.Len() != 0 {
			return errors.New("cleared tree still holds triangles").
				WithTag("len", tree.Len())
		}
		for _, q := range queries {
			if n := count(tree, q[0], q[1]); n != 0 {
				return errors.New("cleared tree yields triangles").
					WithTag("x", q[0]).
					WithTag("y", q[1]).
					WithTag("count", n)
			}
		}
		return nil
	}())

	res.Passed = true
	for _, c := range res.Checks {
		res.Passed = res.Passed && c.Passed
	}
	res.Duration = time.Since(start)
	return res
}

func centroid(t mesh.Triangle) (float64, float64) {
	return (t[0].X + t[1].X + t[2].X) / 3, (t[0].Y + t[1].Y + t[2].Y) / 3
}

func count(tree *quadtree.Tree[float64, mesh.Triangle], x, y float64) int {
	var n int
	for range tree.Query(x, y) {
		n++
	}
	return n
}

func yields(tree *quadtree.Tree[float64, mesh.Triangle], x, y float64, t mesh.Triangle) bool {
	for c := range tree.Query(x, y) {
		if c == t {
			return true
		}
	}
	return false
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test run in the background. The request body
// may override the run options.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		runOpts := opts
		if len(b) != 0 {
			if err := json.Unmarshal(b, &runOpts); err != nil {
				logs.Warn(errors.New("decoding smoke test request failed").Wrap(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		if runOpts.Triangles > MaxTriangles {
			logs.WithTag("triangles", runOpts.Triangles).
				WithTag("max", MaxTriangles).
				Warn("smoke test request has too many triangles")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// if context is of testContext
				// cancel context on exit to signal function exited
				// this is used for testing
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res := Run(ctx, runOpts)

			entry := logs.WithTag("seed", res.Seed).
				WithTag("triangles", res.Triangles).
				WithTag("inserted", res.Inserted).
				WithTag("checks", res.Checks).
				WithTag("duration", res.Duration)
			if res.Passed {
				entry.Info("smoke test passed")
			} else {
				entry.Warn("smoke test failed")
			}

			if runOpts.SendResult == nil {
				return
			}
			if err := runOpts.SendResult(ctx, res); err != nil {
				logs.WithTag("seed", res.Seed).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	}
}
