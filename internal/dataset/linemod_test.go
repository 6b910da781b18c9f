package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/testutil"
)

func newLinemodFixture(t *testing.T, videos ...testutil.LinemodVideo) (*fsutil.MemoryFileSystem, *LinemodDataset) {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteLinemod(t, fsys, "Linemod_preprocessed", videos...)
	ds, err := OpenLinemod(fsys, "Linemod_preprocessed")
	require.NoError(t, err)
	return fsys, ds
}

func TestFrameKey(t *testing.T) {
	assert.Equal(t, "000007", FrameKey(7))
	assert.Equal(t, "001234", FrameKey(1234))
}

func TestLinemodReader(t *testing.T) {
	_, ds := newLinemodFixture(t, testutil.LinemodVideo{
		ObjectID: 1,
		Frames:   3,
		NoMask:   map[int]bool{1: true},
		NoK:      map[int]bool{2: true},
	})

	ids, err := ds.ObjectIDs()
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)

	r, err := ds.Video(1, LinemodOptions{})
	require.NoError(t, err)

	assert.Equal(t, "1", r.VideoID())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, "0002", r.IDStr(2))
	assert.True(t, strings.HasSuffix(r.ColorPath(0), "rgb/0000.png"))

	img, err := r.Color(0)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureW, img.Bounds().Dx())

	depth, err := r.Depth(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, depth.At(3, 3), 1e-6)
	assert.Equal(t, testutil.FixtureW*testutil.FixtureH, depth.Valid())

	k, err := r.K(0)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureK[0], k.Fx())

	_, err = r.K(2)
	assert.True(t, errors.Is(err, ErrNoIntrinsics))

	m, err := r.Mask(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 16, m.Count())

	_, err = r.Mask(1, 1)
	assert.ErrorIs(t, err, ErrNoMask)

	gt, err := r.GTPose(1, 1)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.01, 0, 0.6}, gt.Translation())

	_, err = r.GTPose(1, 5)
	assert.ErrorIs(t, err, ErrNoGroundTruth)
}

func TestLinemodReader_Zfar(t *testing.T) {
	_, ds := newLinemodFixture(t, testutil.LinemodVideo{ObjectID: 2, Frames: 1})
	r, err := ds.Video(2, LinemodOptions{Zfar: 0.5})
	require.NoError(t, err)

	depth, err := r.Depth(0)
	require.NoError(t, err)
	assert.Equal(t, 0, depth.Valid(), "0.6 m is beyond zfar")
}

func TestLinemodReader_Split(t *testing.T) {
	fsys, ds := newLinemodFixture(t, testutil.LinemodVideo{ObjectID: 1, Frames: 4})
	require.NoError(t, fsys.WriteFile("Linemod_preprocessed/data/01/test.txt", []byte("0001\n0003\n"), 0644))

	r, err := ds.Video(1, LinemodOptions{Split: "test"})
	require.NoError(t, err)
	require.Equal(t, 2, r.Len())
	assert.Equal(t, "0001", r.IDStr(0))
	assert.Equal(t, 3, r.FrameNumber(1))

	k, err := r.K(1)
	require.NoError(t, err, "intrinsics are keyed by frame number, not position")
	assert.Equal(t, testutil.FixtureK[2], k.Cx())

	_, err = ds.Video(1, LinemodOptions{Split: "train"})
	assert.Error(t, err)
}

func TestLinemodDataset_Models(t *testing.T) {
	fsys, ds := newLinemodFixture(t, testutil.LinemodVideo{ObjectID: 1, Frames: 1})

	m, err := ds.GTMesh(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, m.Extents().X, 1e-9, "model scaled to metres")
	assert.InDelta(t, 0.10209, ds.Diameter(1), 1e-9)

	tfs := ds.SymmetryTransforms(1, 5)
	require.Len(t, tfs, 1)
	assert.True(t, tfs[0].IsIdentity())

	_, err = ds.GTMesh(9)
	assert.Error(t, err)

	var obj bytes.Buffer
	require.NoError(t, m.WriteOBJ(&obj))
	require.NoError(t, fsys.WriteFile("ref_views/ob_0000001/model/model.obj", obj.Bytes(), 0644))
	rec, err := ds.ReconstructedMesh(1, "ref_views")
	require.NoError(t, err)
	assert.Len(t, rec.Vertices, 4)
}

func TestLinemodDataset_Symmetries(t *testing.T) {
	fsys, _ := newLinemodFixture(t, testutil.LinemodVideo{ObjectID: 10, Frames: 1})
	info := `10:
  diameter: 172.0
  symmetries_discrete:
  - [-1, 0, 0, 0, 0, -1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1]
11:
  diameter: 100.0
  symmetries_continuous:
  - axis: [0, 0, 1]
    offset: [0, 0, 0]
`
	require.NoError(t, fsys.WriteFile("Linemod_preprocessed/models/models_info.yml", []byte(info), 0644))
	ds, err := OpenLinemod(fsys, "Linemod_preprocessed")
	require.NoError(t, err)

	assert.Len(t, ds.SymmetryTransforms(10, 5), 2)
	tfs := ds.SymmetryTransforms(11, 5)
	assert.Len(t, tfs, 72)
	assert.InDelta(t, 5, geom.RotationErrorDeg(tfs[0], tfs[1]), 1e-6)
}

func TestOpenLinemod_NotARoot(t *testing.T) {
	_, err := OpenLinemod(fsutil.NewMemoryFileSystem(), "nowhere")
	assert.Error(t, err)
}

func TestNewLinemod_NoFrames(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.MkdirAll("lm/data/01/rgb", 0755))
	_, err := NewLinemod(fsys, "lm/data/01", LinemodOptions{})
	assert.Error(t, err)
}
