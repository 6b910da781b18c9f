package dataset

import (
	"fmt"
	"image"
	"math"

	_ "image/jpeg"
	_ "image/png"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/units"
)

// DepthMap is a row-major depth image in metres; 0 marks invalid pixels.
type DepthMap struct {
	W, H int
	Data []float32
}

// At returns the depth at (x, y), 0 outside the image.
func (d *DepthMap) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= d.W || y >= d.H {
		return 0
	}
	return d.Data[y*d.W+x]
}

// Valid counts pixels with a usable depth.
func (d *DepthMap) Valid() int {
	n := 0
	for _, v := range d.Data {
		if v > 0 {
			n++
		}
	}
	return n
}

func decodeImage(fsys fsutil.FileSystem, path string) (image.Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// depthFromImage converts raw depth units to metres: raw * scale / 1000,
// the millimetre convention of both datasets. Values below 1 mm or at/after
// zfar are zeroed; zfar <= 0 disables the far clip.
func depthFromImage(img image.Image, scale, zfar float64) *DepthMap {
	b := img.Bounds()
	d := &DepthMap{W: b.Dx(), H: b.Dy(), Data: make([]float32, b.Dx()*b.Dy())}
	if zfar <= 0 {
		zfar = math.Inf(1)
	}
	for y := 0; y < d.H; y++ {
		for x := 0; x < d.W; x++ {
			raw := float64(mask.RawValue(img, b.Min.X+x, b.Min.Y+y))
			m := units.MMToM(raw * scale)
			if m < 0.001 || m >= zfar {
				continue
			}
			d.Data[y*d.W+x] = float32(m)
		}
	}
	return d
}
