package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/testutil"
)

func TestHOTSReader(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteHOTS(t, fsys, "HOTS_v1",
		testutil.HOTSScene{Name: "kitchen_2", Frames: 2, Instances: []int{4, 9}, WithK: true, WithDepth: true},
		testutil.HOTSScene{Name: "desk_1", Frames: 1, Instances: []int{2}},
	)

	scenes, err := LoadHOTSScenes(fsys, "HOTS_v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"desk_1", "kitchen_2"}, scenes)

	r, err := NewHOTS(fsys, "HOTS_v1/kitchen_2", 0)
	require.NoError(t, err)
	assert.Equal(t, "kitchen_2", r.VideoID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "kitchen_2_001", r.IDStr(1))

	objs, err := r.FrameObjects(0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9}, objs)

	m, err := r.Mask(0, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, m.Count())

	_, err = r.Mask(0, 5)
	assert.ErrorIs(t, err, ErrNoMask)

	_, err = r.K(0)
	require.NoError(t, err)

	d, err := r.Depth(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, d.At(0, 0), 1e-6)

	_, err = r.GTPose(0, 4)
	assert.ErrorIs(t, err, ErrNoGroundTruth)

	img, err := r.Color(0)
	require.NoError(t, err)
	assert.Equal(t, testutil.FixtureH, img.Bounds().Dy())
}

func TestHOTSReader_NoCameraNoDepth(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteHOTS(t, fsys, "HOTS_v1", testutil.HOTSScene{Name: "desk_1", Frames: 1, Instances: []int{2}})

	r, err := NewHOTS(fsys, "HOTS_v1/desk_1", 0)
	require.NoError(t, err)

	_, err = r.K(0)
	assert.ErrorIs(t, err, ErrNoIntrinsics)
	_, err = r.Depth(0)
	assert.ErrorIs(t, err, ErrNoDepth)
}

func TestLoadHOTSScenes_Empty(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.MkdirAll("HOTS_v1/readme", 0755))
	_, err := LoadHOTSScenes(fsys, "HOTS_v1")
	assert.Error(t, err)
}
