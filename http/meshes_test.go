package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aukilabs/quadmesh/featureflag"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/models"
	"github.com/aukilabs/quadmesh/voxel"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

// Binary STL stores float32 coordinates.
var testBox = mesh.Cuboid{
	Min: mesh.Vec{X: 2.25, Y: 3.25, Z: 2.125},
	Max: mesh.Vec{X: 7.125, Y: 6.75, Z: 7.75},
}

func newTestMeshAPI(flags ...string) (*MeshAPI, *http.ServeMux) {
	api := &MeshAPI{
		Store:        &models.MeshStore{},
		Lattice:      voxel.Lattice{NX: 4, NY: 4, NZ: 4},
		FeatureFlags: featureflag.New(flags),
	}

	var mux http.ServeMux
	api.Register(&mux)
	return api, &mux
}

func encodedBox(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, mesh.EncodeSTL(&buf, mesh.NewBox(testBox)))
	return buf.Bytes()
}

func serve(mux *http.ServeMux, method, target string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return w
}

func upload(t *testing.T, mux *http.ServeMux, target string) meshResponse {
	w := serve(mux, http.MethodPost, target, encodedBox(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res meshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestMeshAPIUpload(t *testing.T) {
	t.Run("default lattice", func(t *testing.T) {
		api, mux := newTestMeshAPI()
		res := upload(t, mux, "/meshes?name=crate")

		require.NotEmpty(t, res.ID)
		require.Equal(t, "crate", res.Name)
		require.Equal(t, 12, res.Triangles)
		require.Zero(t, res.Rejected)
		require.Equal(t, testBox, res.Bounds)
		require.Equal(t, api.Lattice, res.Lattice)
		require.Equal(t, 12, res.Index.Elements)
		require.Equal(t, 1, api.Store.Len())
	})

	t.Run("custom lattice", func(t *testing.T) {
		_, mux := newTestMeshAPI()
		res := upload(t, mux, "/meshes?lattice=8x6x2")
		require.Equal(t, voxel.Lattice{NX: 8, NY: 6, NZ: 2}, res.Lattice)
		require.Equal(t, "box", res.Name)
	})

	t.Run("invalid lattice", func(t *testing.T) {
		_, mux := newTestMeshAPI()
		w := serve(mux, http.MethodPost, "/meshes?lattice=8x0x2", encodedBox(t))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), voxel.ErrTypeInvalidLattice)
	})

	t.Run("lattice too large", func(t *testing.T) {
		_, mux := newTestMeshAPI()
		for _, lattice := range []string{"300", "3000000"} {
			w := serve(mux, http.MethodPost, "/meshes?lattice="+lattice, encodedBox(t))
			require.Equal(t, http.StatusBadRequest, w.Code, lattice)
			require.Contains(t, w.Body.String(), voxel.ErrTypeInvalidLattice)
		}
	})

	t.Run("coincident facets", func(t *testing.T) {
		api, mux := newTestMeshAPI()

		var stl strings.Builder
		stl.WriteString("solid stack\n")
		writeFacet := func(a, b, c [3]float64) {
			stl.WriteString("facet normal 0 0 1\nouter loop\n")
			for _, v := range [][3]float64{a, b, c} {
				fmt.Fprintf(&stl, "vertex %v %v %v\n", v[0], v[1], v[2])
			}
			stl.WriteString("endloop\nendfacet\n")
		}
		for i := 0; i < 11; i++ {
			writeFacet([3]float64{1, 1, 0}, [3]float64{1, 1, 1}, [3]float64{1, 1, 2})
		}
		writeFacet([3]float64{0, 0, 0}, [3]float64{10, 0, 0}, [3]float64{0, 10, 5})
		stl.WriteString("endsolid stack\n")

		w := serve(mux, http.MethodPost, "/meshes", []byte(stl.String()))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var res meshResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, 12, res.Triangles)
		require.Equal(t, 12, res.Index.Elements)
		require.Equal(t, voxel.DefaultMaxDepth, res.Index.Depth)
		require.Equal(t, 1, api.Store.Len())
	})

	t.Run("invalid stl", func(t *testing.T) {
		_, mux := newTestMeshAPI()
		w := serve(mux, http.MethodPost, "/meshes", []byte("not a mesh"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), mesh.ErrTypeInvalidSTL)
	})

	t.Run("flat mesh", func(t *testing.T) {
		_, mux := newTestMeshAPI()

		var buf bytes.Buffer
		require.NoError(t, mesh.EncodeSTL(&buf, mesh.Mesh{
			Triangles: []mesh.Triangle{{{X: 0}, {X: 1}, {Y: 1}}},
		}))

		w := serve(mux, http.MethodPost, "/meshes", buf.Bytes())
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, w.Body.String(), voxel.ErrTypeInvalidBounds)
	})

	t.Run("disabled", func(t *testing.T) {
		api, mux := newTestMeshAPI(string(featureflag.FlagDisableMeshUpload))
		w := serve(mux, http.MethodPost, "/meshes", encodedBox(t))
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Zero(t, api.Store.Len())
	})
}

func TestMeshAPIListGetDelete(t *testing.T) {
	_, mux := newTestMeshAPI()
	first := upload(t, mux, "/meshes?name=first")
	second := upload(t, mux, "/meshes?name=second")

	w := serve(mux, http.MethodGet, "/meshes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []meshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)

	w = serve(mux, http.MethodGet, "/meshes/"+second.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got meshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "second", got.Name)

	w = serve(mux, http.MethodDelete, "/meshes/"+first.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(mux, http.MethodGet, "/meshes/"+first.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), models.ErrTypeMeshNotFound)

	w = serve(mux, http.MethodDelete, "/meshes/"+first.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMeshAPIClassify(t *testing.T) {
	_, mux := newTestMeshAPI()
	m := upload(t, mux, "/meshes")

	tests := []struct {
		scenario string
		query    string
		status   int
		flag     string
		hits     int
	}{
		{
			scenario: "inside",
			query:    "x=4.1&y=4.4&z=5",
			status:   http.StatusOK,
			flag:     "wall",
			hits:     1,
		},
		{
			scenario: "below",
			query:    "x=4.1&y=4.4&z=1",
			status:   http.StatusOK,
			flag:     "empty",
			hits:     2,
		},
		{
			scenario: "missing coordinate",
			query:    "x=4.1&y=4.4",
			status:   http.StatusBadRequest,
		},
		{
			scenario: "bad coordinate",
			query:    "x=4.1&y=abc&z=1",
			status:   http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			w := serve(mux, http.MethodGet, "/meshes/"+m.ID+"/classify?"+test.query, nil)
			require.Equal(t, test.status, w.Code, w.Body.String())
			if test.status != http.StatusOK {
				require.Contains(t, w.Body.String(), ErrTypeInvalidParameter)
				return
			}

			var res struct {
				Hits int    `json:"hits"`
				Flag string `json:"flag"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			require.Equal(t, test.flag, res.Flag)
			require.Equal(t, test.hits, res.Hits)
		})
	}

	t.Run("unknown mesh", func(t *testing.T) {
		w := serve(mux, http.MethodGet, "/meshes/unknown/classify?x=1&y=1&z=1", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMeshAPICandidates(t *testing.T) {
	_, mux := newTestMeshAPI()
	m := upload(t, mux, "/meshes")

	w := serve(mux, http.MethodGet, "/meshes/"+m.ID+"/candidates?x=4.1&y=4.4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res candidatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 12, res.Count)
	require.Len(t, res.Triangles, 12)

	// Points on the bounds are not covered by the tree.
	w = serve(mux, http.MethodGet, "/meshes/"+m.ID+"/candidates?x=2.25&y=4.4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), `"count":0`))
	require.True(t, strings.Contains(w.Body.String(), `"triangles":[]`))
}

func TestMeshAPIVoxelize(t *testing.T) {
	_, mux := newTestMeshAPI()
	m := upload(t, mux, "/meshes?lattice=5x3x4")

	w := serve(mux, http.MethodPost, "/meshes/"+m.ID+"/voxelize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		ID      string        `json:"id"`
		Lattice voxel.Lattice `json:"lattice"`
		Walls   int           `json:"walls"`
		Empty   int           `json:"empty"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, m.ID, res.ID)
	require.Equal(t, voxel.Lattice{NX: 5, NY: 3, NZ: 4}, res.Lattice)
	require.Equal(t, 60, res.Walls+res.Empty)
	require.NotZero(t, res.Walls)
	require.NotZero(t, res.Empty)
}
