package voxel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidLattice = "voxel_invalid_lattice"
	ErrTypeInvalidBounds  = "voxel_invalid_bounds"

	// DefaultMaxLatticeSize is the largest number of lattice points a
	// voxelizer accepts when Options does not set one.
	DefaultMaxLatticeSize = 1 << 24
)

// Flag is the classification of a lattice point.
type Flag uint8

const (
	Empty Flag = iota
	Wall
)

func (f Flag) String() string {
	switch f {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	default:
		return "unknown"
	}
}

func (f Flag) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Flag) UnmarshalText(b []byte) error {
	switch string(b) {
	case "empty":
		*f = Empty
	case "wall":
		*f = Wall
	default:
		return errors.New("unknown flag").WithTag("flag", string(b))
	}
	return nil
}

// Lattice is the number of sample points along each axis of the mesh bounds.
type Lattice struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
	NZ int `json:"nz"`
}

// ParseLattice parses a lattice written as "NXxNYxNZ", or a single number for
// a cubic lattice.
func ParseLattice(s string) (Lattice, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) == 1 {
		parts = []string{parts[0], parts[0], parts[0]}
	}
	if len(parts) != 3 {
		return Lattice{}, errors.New("lattice must have three dimensions").
			WithType(ErrTypeInvalidLattice).
			WithTag("lattice", s)
	}

	var dims [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Lattice{}, errors.New("parsing lattice dimension failed").
				WithType(ErrTypeInvalidLattice).
				WithTag("lattice", s).
				Wrap(err)
		}
		dims[i] = n
	}

	l := Lattice{NX: dims[0], NY: dims[1], NZ: dims[2]}
	return l, l.validate()
}

// Size returns the number of lattice points. It is only meaningful for a
// lattice accepted by ParseLattice or New.
func (l Lattice) Size() int {
	return l.NX * l.NY * l.NZ
}

// Index returns the position of a lattice point in a sweep result.
func (l Lattice) Index(px, py, pz int) int {
	return px + l.NX*(py+l.NY*pz)
}

func (l Lattice) String() string {
	return fmt.Sprintf("%dx%dx%d", l.NX, l.NY, l.NZ)
}

func (l Lattice) validate() error {
	if l.NX <= 0 || l.NY <= 0 || l.NZ <= 0 {
		return errors.New("lattice dimensions must be positive").
			WithType(ErrTypeInvalidLattice).
			WithTag("lattice", l.String())
	}

	if l.NY > math.MaxInt/l.NX || l.NZ > math.MaxInt/(l.NX*l.NY) {
		return errors.New("lattice size overflows").
			WithType(ErrTypeInvalidLattice).
			WithTag("lattice", l.String())
	}
	return nil
}

// CheckSize returns an error when the lattice has more than limit points.
func (l Lattice) CheckSize(limit int) error {
	if err := l.validate(); err != nil {
		return err
	}

	if l.Size() > limit {
		return errors.New("lattice is too large").
			WithType(ErrTypeInvalidLattice).
			WithTag("lattice", l.String()).
			WithTag("max", limit)
	}
	return nil
}
