package voxel

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseLattice(t *testing.T) {
	tests := []struct {
		scenario string
		in       string
		lattice  Lattice
		err      bool
	}{
		{
			scenario: "three dimensions",
			in:       "20x10x5",
			lattice:  Lattice{NX: 20, NY: 10, NZ: 5},
		},
		{
			scenario: "cube",
			in:       "16",
			lattice:  Lattice{NX: 16, NY: 16, NZ: 16},
		},
		{
			scenario: "upper case separator",
			in:       " 4X4X2 ",
			lattice:  Lattice{NX: 4, NY: 4, NZ: 2},
		},
		{
			scenario: "two dimensions",
			in:       "4x4",
			err:      true,
		},
		{
			scenario: "not a number",
			in:       "4xax4",
			err:      true,
		},
		{
			scenario: "zero dimension",
			in:       "4x0x4",
			err:      true,
		},
		{
			scenario: "empty",
			in:       "",
			err:      true,
		},
		{
			scenario: "overflowing size",
			in:       "3000000x3000000x3000000",
			err:      true,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			l, err := ParseLattice(test.in)
			if test.err {
				require.Error(t, err)
				require.Equal(t, ErrTypeInvalidLattice, errors.Type(err))
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.lattice, l)
		})
	}
}

func TestLatticeCheckSize(t *testing.T) {
	l := Lattice{NX: 4, NY: 3, NZ: 2}
	require.NoError(t, l.CheckSize(24))

	err := l.CheckSize(23)
	require.Error(t, err)
	require.Equal(t, ErrTypeInvalidLattice, errors.Type(err))

	err = Lattice{NX: 1 << 30, NY: 1 << 30, NZ: 1 << 30}.CheckSize(DefaultMaxLatticeSize)
	require.Error(t, err)
	require.Equal(t, ErrTypeInvalidLattice, errors.Type(err))
}

func TestLattice(t *testing.T) {
	l := Lattice{NX: 4, NY: 3, NZ: 2}
	require.Equal(t, 24, l.Size())
	require.Equal(t, "4x3x2", l.String())
	require.Equal(t, 0, l.Index(0, 0, 0))
	require.Equal(t, 23, l.Index(3, 2, 1))
	require.Equal(t, 5, l.Index(1, 1, 0))
}

func TestFlag(t *testing.T) {
	require.Equal(t, "empty", Empty.String())
	require.Equal(t, "wall", Wall.String())

	b, err := Wall.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "wall", string(b))

	var f Flag
	require.NoError(t, f.UnmarshalText([]byte("wall")))
	require.Equal(t, Wall, f)
	require.NoError(t, f.UnmarshalText([]byte("empty")))
	require.Equal(t, Empty, f)
	require.Error(t, f.UnmarshalText([]byte("solid")))
}
