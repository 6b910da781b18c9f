// Package mesh loads the object models handed to the estimator and writes
// the transformed copies used for debugging.
package mesh

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
)

// Mesh is a triangle mesh with per-vertex normals.
type Mesh struct {
	Vertices []r3.Vector
	Normals  []r3.Vector
	Faces    [][3]int
}

// Load reads a .ply or .obj file. Vertex normals absent from the file are
// computed from the faces.
func Load(fsys fsutil.FileSystem, path string) (*Mesh, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	var m *Mesh
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ply":
		m, err = ReadPLY(bufio.NewReader(f))
	case ".obj":
		m, err = ReadOBJ(f)
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read mesh %s: %w", path, err)
	}
	if len(m.Normals) != len(m.Vertices) {
		m.ComputeNormals()
	}
	return m, nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: append([]r3.Vector(nil), m.Vertices...),
		Normals:  append([]r3.Vector(nil), m.Normals...),
		Faces:    append([][3]int(nil), m.Faces...),
	}
	return out
}

// Scale multiplies every vertex by s, e.g. 1e-3 for millimetre models.
func (m *Mesh) Scale(s float64) {
	for i, v := range m.Vertices {
		m.Vertices[i] = v.Mul(s)
	}
}

// Transform applies p to vertices and its rotation to normals.
func (m *Mesh) Transform(p geom.Pose) {
	rot := p
	rot.T[3], rot.T[7], rot.T[11] = 0, 0, 0
	for i, v := range m.Vertices {
		x, y, z := p.Apply(v.X, v.Y, v.Z)
		m.Vertices[i] = r3.Vector{X: x, Y: y, Z: z}
	}
	for i, n := range m.Normals {
		x, y, z := rot.Apply(n.X, n.Y, n.Z)
		m.Normals[i] = r3.Vector{X: x, Y: y, Z: z}
	}
}

// ComputeNormals sets area-weighted vertex normals from the faces. Vertices
// not referenced by any face get a zero normal.
func (m *Mesh) ComputeNormals() {
	normals := make([]r3.Vector, len(m.Vertices))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i, n := range normals {
		if n.Norm() > 0 {
			normals[i] = n.Normalize()
		}
	}
	m.Normals = normals
}

// Extents returns the axis-aligned bounding box size.
func (m *Mesh) Extents() r3.Vector {
	if len(m.Vertices) == 0 {
		return r3.Vector{}
	}
	lo, hi := m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = r3.Vector{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = r3.Vector{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return hi.Sub(lo)
}

// Box returns a box centred on the origin with the given extents. It is the
// placeholder object the estimator is constructed with before the first
// real model is loaded.
func Box(extents r3.Vector) *Mesh {
	h := extents.Mul(0.5)
	m := &Mesh{}
	for i := 0; i < 8; i++ {
		v := r3.Vector{X: -h.X, Y: -h.Y, Z: -h.Z}
		if i&1 != 0 {
			v.X = h.X
		}
		if i&2 != 0 {
			v.Y = h.Y
		}
		if i&4 != 0 {
			v.Z = h.Z
		}
		m.Vertices = append(m.Vertices, v)
	}
	m.Faces = [][3]int{
		{0, 2, 1}, {1, 2, 3}, // -z
		{4, 5, 6}, {5, 7, 6}, // +z
		{0, 1, 4}, {1, 5, 4}, // -y
		{2, 6, 3}, {3, 6, 7}, // +y
		{0, 4, 2}, {2, 4, 6}, // -x
		{1, 3, 5}, {3, 7, 5}, // +x
	}
	m.ComputeNormals()
	return m
}

// WriteOBJ writes vertices, normals and faces in Wavefront OBJ form.
func (m *Mesh) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %.6f %.6f %.6f\n", v.X, v.Y, v.Z)
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %.6f %.6f %.6f\n", n.X, n.Y, n.Z)
	}
	withNormals := len(m.Normals) == len(m.Vertices)
	for _, f := range m.Faces {
		if withNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", f[0]+1, f[0]+1, f[1]+1, f[1]+1, f[2]+1, f[2]+1)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", f[0]+1, f[1]+1, f[2]+1)
		}
	}
	return bw.Flush()
}

// SaveOBJ writes the mesh to path through fsys.
func (m *Mesh) SaveOBJ(fsys fsutil.FileSystem, path string) error {
	w, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := m.WriteOBJ(w); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}
