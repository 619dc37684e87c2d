package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmesh/featureflag"
	"github.com/aukilabs/quadmesh/mesh"
	"github.com/aukilabs/quadmesh/models"
	"github.com/aukilabs/quadmesh/quadtree"
	"github.com/aukilabs/quadmesh/voxel"
)

// DefaultMaxUploadSize is the largest STL body accepted when MeshAPI does
// not set one.
const DefaultMaxUploadSize = 64 << 20

// MeshAPI serves the mesh upload and query endpoints.
type MeshAPI struct {
	Store *models.MeshStore

	// The lattice used when an upload does not specify one.
	Lattice voxel.Lattice

	// The voxelizer options for uploads. A zero MaxDepth falls back to
	// voxel.DefaultMaxDepth.
	Options       voxel.Options
	MaxUploadSize int64
	FeatureFlags  featureflag.FeatureFlag
}

// Register adds the mesh routes to the mux.
func (a *MeshAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /meshes", a.HandleUpload)
	mux.HandleFunc("GET /meshes", a.HandleList)
	mux.HandleFunc("GET /meshes/{id}", a.HandleGet)
	mux.HandleFunc("DELETE /meshes/{id}", a.HandleDelete)
	mux.HandleFunc("GET /meshes/{id}/classify", a.HandleClassify)
	mux.HandleFunc("GET /meshes/{id}/candidates", a.HandleCandidates)
	mux.HandleFunc("POST /meshes/{id}/voxelize", a.HandleVoxelize)
}

type meshResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	Triangles int            `json:"triangles"`
	Rejected  int            `json:"rejected"`
	Bounds    mesh.Cuboid    `json:"bounds"`
	Lattice   voxel.Lattice  `json:"lattice"`
	Index     quadtree.Stats `json:"index"`
}

func newMeshResponse(m *models.Mesh) meshResponse {
	v := m.Voxelizer
	return meshResponse{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		Triangles: len(v.Mesh().Triangles),
		Rejected:  v.Rejected(),
		Bounds:    v.Bounds(),
		Lattice:   v.Lattice(),
		Index:     v.Stats(),
	}
}

// HandleUpload creates a mesh from an STL request body. The name and lattice
// query parameters are optional.
func (a *MeshAPI) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if a.FeatureFlags.IsSet(featureflag.FlagDisableMeshUpload) {
		writeError(w, errors.New("mesh upload is disabled").
			WithType(ErrTypeFeatureDisabled))
		return
	}

	lattice := a.Lattice
	if l := r.URL.Query().Get("lattice"); l != "" {
		var err error
		if lattice, err = voxel.ParseLattice(l); err != nil {
			writeError(w, err)
			return
		}
	}

	maxSize := a.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}

	m, err := mesh.DecodeSTL(http.MaxBytesReader(w, r.Body, maxSize))
	if err != nil {
		writeError(w, err)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		m.Name = name
	}
	if m.Name == "" {
		m.Name = "unnamed"
	}

	opts := a.Options
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = voxel.DefaultMaxDepth
	}

	v, err := voxel.New(m, m.Bounds(), lattice, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	model := models.NewMesh(m.Name, v)
	a.Store.Add(model)

	logs.WithTag("mesh_id", model.ID).
		WithTag("name", model.Name).
		WithTag("triangles", len(m.Triangles)).
		WithTag("lattice", lattice.String()).
		Info("mesh loaded")

	writeJSON(w, http.StatusCreated, newMeshResponse(model))
}

func (a *MeshAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	meshes := a.Store.List()

	res := make([]meshResponse, 0, len(meshes))
	for _, m := range meshes {
		res = append(res, newMeshResponse(m))
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *MeshAPI) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMeshResponse(m))
}

func (a *MeshAPI) HandleDelete(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.Remove(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("mesh_id", m.ID).
		WithTag("name", m.Name).
		Info("mesh removed")

	w.WriteHeader(http.StatusNoContent)
}

type classifyResponse struct {
	Point mesh.Vec   `json:"point"`
	Hits  int        `json:"hits"`
	Flag  voxel.Flag `json:"flag"`
}

// HandleClassify classifies the point given by the x, y and z query
// parameters.
func (a *MeshAPI) HandleClassify(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	coords, err := floatParams(r, "x", "y", "z")
	if err != nil {
		writeError(w, err)
		return
	}

	p := mesh.Vec{X: coords[0], Y: coords[1], Z: coords[2]}
	flag, hits := m.Voxelizer.ClassifyHits(p)
	writeJSON(w, http.StatusOK, classifyResponse{
		Point: p,
		Hits:  hits,
		Flag:  flag,
	})
}

type candidatesResponse struct {
	Count     int             `json:"count"`
	Triangles []mesh.Triangle `json:"triangles"`
}

// HandleCandidates returns the triangles yielded by a point query at the x
// and y query parameters.
func (a *MeshAPI) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	coords, err := floatParams(r, "x", "y")
	if err != nil {
		writeError(w, err)
		return
	}

	triangles := m.Voxelizer.Candidates(coords[0], coords[1])
	if triangles == nil {
		triangles = []mesh.Triangle{}
	}
	writeJSON(w, http.StatusOK, candidatesResponse{
		Count:     len(triangles),
		Triangles: triangles,
	})
}

type voxelizeResponse struct {
	ID string `json:"id"`
	voxel.Result
}

// HandleVoxelize sweeps the mesh lattice and returns the classification
// counts.
func (a *MeshAPI) HandleVoxelize(w http.ResponseWriter, r *http.Request) {
	m, err := a.Store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := m.Voxelizer.Voxelize(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("mesh_id", m.ID).
		WithTag("walls", res.Walls).
		WithTag("empty", res.Empty).
		WithTag("duration", res.Duration).
		Info("mesh voxelized")

	writeJSON(w, http.StatusOK, voxelizeResponse{
		ID:     m.ID,
		Result: res,
	})
}

func floatParams(r *http.Request, names ...string) ([]float64, error) {
	query := r.URL.Query()
	values := make([]float64, 0, len(names))

	for _, name := range names {
		v, err := strconv.ParseFloat(query.Get(name), 64)
		if err != nil {
			return nil, errors.New("invalid query parameter").
				WithType(ErrTypeInvalidParameter).
				WithTag("name", name).
				WithTag("value", query.Get(name)).
				Wrap(err)
		}
		values = append(values, v)
	}
	return values, nil
}
