package mask

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	masks     map[int]*Mask
	colorPath string
	calls     int
}

func (f *fakeSource) Mask(i, obID int) (*Mask, error) {
	f.calls++
	m, ok := f.masks[i]
	if !ok {
		return nil, ErrNoMask
	}
	return m, nil
}

func (f *fakeSource) ColorPath(i int) string { return f.colorPath }

func TestParseDetectType(t *testing.T) {
	for _, s := range []string{"box", "mask", "detected", " MASK "} {
		_, err := ParseDetectType(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseDetectType("bbox")
	assert.True(t, errors.Is(err, ErrUnknownDetectType))
}

func TestDetectedMaskPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/data/01/rgb/0004.png", "/data/01/mask_cosypose/0004.png"},
		{"/home/rgbd/Linemod_preprocessed/data/01/rgb/0000.png", "/home/rgbd/Linemod_preprocessed/data/01/mask_cosypose/0000.png"},
		{"/mnt/hots_rgb/HOTS_v1/kitchen_1/rgb/0000.png", "/mnt/hots_rgb/HOTS_v1/kitchen_1/mask_cosypose/0000.png"},
		{"rgb/rgb.png", "mask_cosypose/rgb.png"},
		{"/data/01/color/0004.png", ""},
		{"/data/rgb_extra/0004.png", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, filepath.FromSlash(tt.want), DetectedMaskPath(filepath.FromSlash(tt.in)), tt.in)
	}
}

func TestSelect_Mask(t *testing.T) {
	stored := New(5, 5)
	stored.Set(1, 1, true)
	src := &fakeSource{masks: map[int]*Mask{0: stored}}

	m, err := Select(src, 0, 1, DetectMask)
	require.NoError(t, err)
	assert.Same(t, stored, m)

	_, err = Select(src, 1, 1, DetectMask)
	assert.ErrorIs(t, err, ErrNoMask)
}

func TestSelect_BoxExclusiveUpperBounds(t *testing.T) {
	stored := New(8, 8)
	stored.Set(1, 2, true)
	stored.Set(4, 6, true)
	src := &fakeSource{masks: map[int]*Mask{0: stored}}

	m, err := Select(src, 0, 1, DetectBox)
	require.NoError(t, err)

	// rows 2..5, cols 1..3
	assert.Equal(t, 4*3, m.Count())
	assert.True(t, m.At(1, 2))
	assert.True(t, m.At(3, 5))
	assert.False(t, m.At(4, 6))
	assert.False(t, m.At(4, 2))
	assert.False(t, m.At(1, 6))
}

func TestSelect_BoxEmptyStoredMask(t *testing.T) {
	src := &fakeSource{masks: map[int]*Mask{0: New(4, 4)}}
	_, err := Select(src, 0, 1, DetectBox)
	assert.ErrorIs(t, err, ErrNoMask)

	_, err = Select(src, 3, 1, DetectBox)
	assert.ErrorIs(t, err, ErrNoMask)
}

func TestSelect_Detected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rgb"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mask_cosypose"), 0755))

	label := image.NewGray(image.Rect(0, 0, 4, 1))
	label.SetGray(0, 0, color.Gray{Y: 1})
	label.SetGray(1, 0, color.Gray{Y: 2})
	label.SetGray(2, 0, color.Gray{Y: 2})
	f, err := os.Create(filepath.Join(dir, "mask_cosypose", "0000.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, label))
	require.NoError(t, f.Close())

	src := &fakeSource{colorPath: filepath.Join(dir, "rgb", "0000.png")}

	m, err := Select(src, 0, 2, DetectDetected)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true, false}, m.Bits)
	assert.Equal(t, 0, src.calls, "detected strategy must not read the stored mask")

	src.colorPath = filepath.Join(dir, "rgb", "0001.png")
	_, err = Select(src, 1, 2, DetectDetected)
	assert.ErrorIs(t, err, ErrNoMask)
}

func TestSelect_DetectedRootContainsRGB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rgbd_data", "hots_rgb", "01")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rgb"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mask_cosypose"), 0755))

	label := image.NewGray(image.Rect(0, 0, 3, 1))
	label.SetGray(1, 0, color.Gray{Y: 5})
	f, err := os.Create(filepath.Join(dir, "mask_cosypose", "0000.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, label))
	require.NoError(t, f.Close())

	src := &fakeSource{colorPath: filepath.Join(dir, "rgb", "0000.png")}
	m, err := Select(src, 0, 5, DetectDetected)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, m.Bits)

	src.colorPath = filepath.Join(dir, "color", "0000.png")
	_, err = Select(src, 0, 5, DetectDetected)
	assert.ErrorIs(t, err, ErrNoMask)
}

func TestSelect_UnknownType(t *testing.T) {
	src := &fakeSource{}
	_, err := Select(src, 0, 1, DetectType("segment"))
	assert.ErrorIs(t, err, ErrUnknownDetectType)
	assert.Equal(t, 0, src.calls)
}
