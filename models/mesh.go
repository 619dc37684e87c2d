package models

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmesh/voxel"
	"github.com/google/uuid"
)

const (
	ErrTypeMeshNotFound = "mesh_not_found"
)

// Mesh is a loaded mesh ready to be voxelized.
type Mesh struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Voxelizer *voxel.Voxelizer
}

func NewMesh(name string, v *voxel.Voxelizer) *Mesh {
	return &Mesh{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		Voxelizer: v,
	}
}

// MeshStore holds the loaded meshes.
type MeshStore struct {
	mutex  sync.RWMutex
	meshes map[string]*Mesh
}

func (s *MeshStore) Add(m *Mesh) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.meshes == nil {
		s.meshes = make(map[string]*Mesh)
	}

	if _, ok := s.meshes[m.ID]; !ok {
		instrumentIncreaseMeshGauge()
		instrumentCountMesh()
	}
	s.meshes[m.ID] = m
}

func (s *MeshStore) Get(id string) (*Mesh, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	m, ok := s.meshes[id]
	if !ok {
		return nil, errors.New("mesh not found").
			WithType(ErrTypeMeshNotFound).
			WithTag("mesh_id", id)
	}
	return m, nil
}

func (s *MeshStore) Remove(id string) (*Mesh, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, ok := s.meshes[id]
	if !ok {
		return nil, errors.New("mesh not found").
			WithType(ErrTypeMeshNotFound).
			WithTag("mesh_id", id)
	}

	delete(s.meshes, id)
	instrumentDecreaseMeshGauge()
	return m, nil
}

// List returns the stored meshes ordered by creation time.
func (s *MeshStore) List() []*Mesh {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	meshes := make([]*Mesh, 0, len(s.meshes))
	for _, m := range s.meshes {
		meshes = append(meshes, m)
	}

	slices.SortFunc(meshes, func(a, b *Mesh) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return meshes
}

func (s *MeshStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.meshes)
}
