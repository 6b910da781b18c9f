package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
)

const asciiPLY = `ply
format ascii 1.0
comment tetra
element vertex 4
property float x
property float y
property float z
element face 2
property list uchar int vertex_indices
end_header
0 0 0
10 0 0
0 10 0
0 0 10
3 0 1 2
4 0 1 3 2
`

func TestReadPLY_ASCII(t *testing.T) {
	m, err := ReadPLY(bufio.NewReader(strings.NewReader(asciiPLY)))
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 4)
	assert.Len(t, m.Faces, 3, "quad is fan-triangulated")
	assert.Empty(t, m.Normals)
	assert.Equal(t, r3.Vector{X: 10}, m.Vertices[1])
}

func TestReadPLY_BinaryWithNormals(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\n" +
		"element vertex 3\nproperty float x\nproperty float y\nproperty float z\n" +
		"property float nx\nproperty float ny\nproperty float nz\nproperty uchar red\n" +
		"element face 1\nproperty list uchar int vertex_indices\nend_header\n")
	verts := [][7]float32{
		{0, 0, 0, 0, 0, 1},
		{1, 0, 0, 0, 0, 1},
		{0, 1, 0, 0, 0, 1},
	}
	for _, v := range verts {
		for _, f := range v[:6] {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
		}
		buf.WriteByte(200)
	}
	buf.WriteByte(3)
	for _, idx := range []int32{0, 1, 2} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, idx))
	}

	m, err := ReadPLY(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, m.Vertices, 3)
	require.Len(t, m.Normals, 3)
	assert.Equal(t, [][3]int{{0, 1, 2}}, m.Faces)
	assert.Equal(t, r3.Vector{Z: 1}, m.Normals[2])
}

func TestReadPLY_Errors(t *testing.T) {
	_, err := ReadPLY(bufio.NewReader(strings.NewReader("obj\n")))
	assert.Error(t, err)

	bad := strings.Replace(asciiPLY, "3 0 1 2", "3 0 1 9", 1)
	_, err = ReadPLY(bufio.NewReader(strings.NewReader(bad)))
	assert.Error(t, err)
}

func TestReadPLY_BadListLength(t *testing.T) {
	for _, face := range []string{"-1 0 1 2", "1e12 0 1 2", "2.5 0 1 2", "9 0 1 2"} {
		bad := strings.Replace(asciiPLY, "3 0 1 2", face, 1)
		_, err := ReadPLY(bufio.NewReader(strings.NewReader(bad)))
		assert.Error(t, err, face)
	}

	var buf bytes.Buffer
	buf.WriteString("ply\nformat binary_little_endian 1.0\n" +
		"element vertex 1\nproperty float x\nproperty float y\nproperty float z\n" +
		"element face 1\nproperty list int int vertex_indices\nend_header\n")
	for _, f := range []float32{0, 0, 0} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
	}
	for _, count := range []int32{-5, 1 << 30} {
		data := append([]byte(nil), buf.Bytes()...)
		data = binary.LittleEndian.AppendUint32(data, uint32(count))
		_, err := ReadPLY(bufio.NewReader(bytes.NewReader(data)))
		assert.Error(t, err, count)
	}
}

func TestLoad_ComputesMissingNormals(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("models/obj_01.ply", []byte(asciiPLY), 0644))

	m, err := Load(fsys, "models/obj_01.ply")
	require.NoError(t, err)
	require.Len(t, m.Normals, 4)
	for _, n := range m.Normals {
		assert.InDelta(t, 1, n.Norm(), 1e-9)
	}

	_, err = Load(fsys, "models/obj_01.stl")
	assert.Error(t, err)
	_, err = Load(fsys, "models/missing.ply")
	assert.Error(t, err)
}

func TestOBJRoundTrip(t *testing.T) {
	box := Box(r3.Vector{X: 1, Y: 2, Z: 3})
	var buf bytes.Buffer
	require.NoError(t, box.WriteOBJ(&buf))

	back, err := ReadOBJ(&buf)
	require.NoError(t, err)
	assert.Len(t, back.Vertices, 8)
	assert.Len(t, back.Faces, 12)
	assert.Len(t, back.Normals, 8)
	for i := range box.Vertices {
		assert.InDelta(t, box.Vertices[i].X, back.Vertices[i].X, 1e-6)
		assert.InDelta(t, box.Vertices[i].Z, back.Vertices[i].Z, 1e-6)
	}
}

func TestReadOBJ_NegativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"
	m, err := ReadOBJ(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{0, 1, 2}}, m.Faces)

	_, err = ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	assert.Error(t, err)
}

func TestBoxExtents(t *testing.T) {
	box := Box(r3.Vector{X: 1, Y: 1, Z: 1})
	assert.Equal(t, r3.Vector{X: 1, Y: 1, Z: 1}, box.Extents())
	assert.Equal(t, r3.Vector{}, (&Mesh{}).Extents())
}

func TestTransformAndScale(t *testing.T) {
	m := Box(r3.Vector{X: 2, Y: 2, Z: 2})
	m.Scale(0.5)
	assert.Equal(t, r3.Vector{X: 1, Y: 1, Z: 1}, m.Extents())

	moved := m.Clone()
	p := geom.RotationAbout([3]float64{0, 0, 1}, math.Pi/2)
	p.T[3] = 5
	moved.Transform(p)

	x, y, _ := p.Apply(m.Vertices[1].X, m.Vertices[1].Y, m.Vertices[1].Z)
	assert.InDelta(t, x, moved.Vertices[1].X, 1e-12)
	assert.InDelta(t, y, moved.Vertices[1].Y, 1e-12)
	for _, n := range moved.Normals {
		assert.InDelta(t, 1, n.Norm(), 1e-9, "normals are rotated, not translated")
	}
	assert.NotEqual(t, m.Vertices[1], moved.Vertices[1], "clone is independent")
}

func TestSaveOBJ(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, Box(r3.Vector{X: 1, Y: 1, Z: 1}).SaveOBJ(fsys, "debug/model_tf.obj"))
	data, err := fsys.ReadFile("debug/model_tf.obj")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "v "))
}
