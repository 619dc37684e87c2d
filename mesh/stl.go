package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidSTL = "mesh_invalid_stl"

	stlHeaderSize    = 80
	stlFacetSize     = 50
	stlMinBinarySize = stlHeaderSize + 4
)

// LoadSTL reads an ASCII or binary STL file.
func LoadSTL(path string) (Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mesh{}, errors.New("opening stl file failed").
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	m, err := DecodeSTL(f)
	if err != nil {
		return Mesh{}, errors.New("loading stl file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// DecodeSTL reads an ASCII or binary STL stream. Binary content is detected
// from the facet count in its header, since binary headers may also start
// with "solid".
func DecodeSTL(r io.Reader) (Mesh, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Mesh{}, errors.New("reading stl failed").Wrap(err)
	}

	if len(b) >= stlMinBinarySize {
		count := binary.LittleEndian.Uint32(b[stlHeaderSize:])
		if uint64(len(b)) == stlMinBinarySize+uint64(count)*stlFacetSize {
			return decodeBinarySTL(b, int(count))
		}
	}

	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("solid")) {
		return decodeASCIISTL(b)
	}

	return Mesh{}, errors.New("unrecognized stl content").
		WithType(ErrTypeInvalidSTL).
		WithTag("size", len(b))
}

func decodeBinarySTL(b []byte, count int) (Mesh, error) {
	m := Mesh{
		Name:      strings.TrimSpace(strings.TrimPrefix(string(bytes.TrimRight(b[:stlHeaderSize], "\x00")), "solid")),
		Triangles: make([]Triangle, 0, count),
	}

	readVec := func(p []byte) Vec {
		return Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[0:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(p[8:]))),
		}
	}

	for i := 0; i < count; i++ {
		// normal (12 bytes), 3 vertices (36 bytes), attribute count (2 bytes)
		facet := b[stlMinBinarySize+i*stlFacetSize:]
		t := Triangle{
			readVec(facet[12:]),
			readVec(facet[24:]),
			readVec(facet[36:]),
		}
		for _, p := range t {
			if !IsFinite(p) {
				return Mesh{}, errors.New("vertex is not finite").
					WithType(ErrTypeInvalidSTL).
					WithTag("facet", i).
					WithTag("vertex", p)
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, nil
}

func decodeASCIISTL(b []byte) (Mesh, error) {
	var m Mesh

	scanner := bufio.NewScanner(bytes.NewReader(b))
	var line int
	var vertices []Vec

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "solid":
			m.Name = strings.Join(fields[1:], " ")

		case "vertex":
			if len(fields) != 4 {
				return Mesh{}, errors.New("malformed vertex").
					WithType(ErrTypeInvalidSTL).
					WithTag("line", line)
			}

			var coords [3]float64
			for i := range coords {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return Mesh{}, errors.New("malformed vertex coordinate").
						WithType(ErrTypeInvalidSTL).
						WithTag("line", line).
						Wrap(err)
				}
				if !isFinite(v) {
					return Mesh{}, errors.New("vertex is not finite").
						WithType(ErrTypeInvalidSTL).
						WithTag("line", line).
						WithTag("coordinate", fields[i+1])
				}
				coords[i] = v
			}
			vertices = append(vertices, Vec{X: coords[0], Y: coords[1], Z: coords[2]})

		case "endloop":
			if len(vertices) != 3 {
				return Mesh{}, errors.New("facet must have three vertices").
					WithType(ErrTypeInvalidSTL).
					WithTag("line", line).
					WithTag("vertices", len(vertices))
			}
			m.Triangles = append(m.Triangles, Triangle{vertices[0], vertices[1], vertices[2]})
			vertices = vertices[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return Mesh{}, errors.New("scanning ascii stl failed").Wrap(err)
	}
	return m, nil
}

// EncodeSTL writes the mesh as binary STL.
func EncodeSTL(w io.Writer, m Mesh) error {
	var header [stlHeaderSize]byte
	copy(header[:], m.Name)

	bw := bufio.NewWriter(w)
	bw.Write(header[:])
	binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles)))

	for _, t := range m.Triangles {
		var facet [12]float32
		n := t.Normal()
		facet[0], facet[1], facet[2] = float32(n.X), float32(n.Y), float32(n.Z)
		for i, p := range t {
			facet[3+i*3] = float32(p.X)
			facet[4+i*3] = float32(p.Y)
			facet[5+i*3] = float32(p.Z)
		}
		binary.Write(bw, binary.LittleEndian, facet)
		binary.Write(bw, binary.LittleEndian, uint16(0))
	}

	if err := bw.Flush(); err != nil {
		return errors.New("writing stl failed").Wrap(err)
	}
	return nil
}
