// Package testutil provides shared test helpers and on-disk dataset
// fixtures.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/posebench/internal/fsutil"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Linemod fixture geometry.
const (
	FixtureW     = 16
	FixtureH     = 12
	FixtureDepth = 600 // millimetres
)

// FixtureK is the camera matrix written to fixture info files.
var FixtureK = []float64{572.4114, 0, 325.2611, 0, 573.57043, 242.04899, 0, 0, 1}

// TetraPLY is a small ASCII PLY model in millimetres.
const TetraPLY = `ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
element face 4
property list uchar int vertex_indices
end_header
0 0 0
50 0 0
0 50 0
0 0 50
3 0 2 1
3 0 1 3
3 0 3 2
3 1 2 3
`

// LinemodVideo describes one fixture video directory.
type LinemodVideo struct {
	ObjectID int
	Frames   int
	// NoMask lists frames written without a mask file.
	NoMask map[int]bool
	// NoK lists frames omitted from info.yml.
	NoK map[int]bool
	// Detected writes mask_cosypose label images (value = ObjectID).
	Detected bool
}

// WriteLinemod writes a Linemod_preprocessed tree under root with one
// video per entry, a model per object and a models_info.yml.
func WriteLinemod(t testing.TB, fsys fsutil.FileSystem, root string, videos ...LinemodVideo) {
	t.Helper()
	var info strings.Builder
	for _, v := range videos {
		dir := filepath.Join(root, "data", fmt.Sprintf("%02d", v.ObjectID))
		var gt, ki strings.Builder
		for i := 0; i < v.Frames; i++ {
			id := fmt.Sprintf("%04d", i)
			writePNG(t, fsys, filepath.Join(dir, "rgb", id+".png"), colorImage(i))
			writePNG(t, fsys, filepath.Join(dir, "depth", id+".png"), depthImage(FixtureDepth))
			if !v.NoMask[i] {
				writePNG(t, fsys, filepath.Join(dir, "mask", id+".png"), squareLabel(255, i))
			}
			if v.Detected {
				writePNG(t, fsys, filepath.Join(dir, "mask_cosypose", id+".png"), squareLabel(uint8(v.ObjectID), i))
			}
			fmt.Fprintf(&gt, "%d:\n- cam_R_m2c: [1.0, 0.0, 0.0, 0.0, 1.0, 0.0, 0.0, 0.0, 1.0]\n", i)
			fmt.Fprintf(&gt, "  cam_t_m2c: [%d.0, 0.0, %d.0]\n  obj_bb: [1, 1, 4, 4]\n  obj_id: %d\n", 10*i, FixtureDepth, v.ObjectID)
			if !v.NoK[i] {
				fmt.Fprintf(&ki, "%d:\n  cam_K: %s\n  depth_scale: 1.0\n", i, floatList(FixtureK))
			}
		}
		writeFile(t, fsys, filepath.Join(dir, "gt.yml"), gt.String())
		writeFile(t, fsys, filepath.Join(dir, "info.yml"), ki.String())
		writeFile(t, fsys, filepath.Join(root, "models", fmt.Sprintf("obj_%02d.ply", v.ObjectID)), TetraPLY)
		fmt.Fprintf(&info, "%d: {diameter: 102.09, min_x: 0.0, min_y: 0.0, min_z: 0.0}\n", v.ObjectID)
	}
	writeFile(t, fsys, filepath.Join(root, "models", "models_info.yml"), info.String())
}

// HOTSScene describes one fixture scene.
type HOTSScene struct {
	Name   string
	Frames int
	// Instances are the ids painted into every frame's label image.
	Instances []int
	WithK     bool
	WithDepth bool
}

// WriteHOTS writes scenes under root.
func WriteHOTS(t testing.TB, fsys fsutil.FileSystem, root string, scenes ...HOTSScene) {
	t.Helper()
	for _, s := range scenes {
		dir := filepath.Join(root, s.Name)
		for i := 0; i < s.Frames; i++ {
			id := fmt.Sprintf("%s_%03d", s.Name, i)
			writePNG(t, fsys, filepath.Join(dir, "rgb", id+".png"), colorImage(i))
			if s.WithDepth {
				writePNG(t, fsys, filepath.Join(dir, "depth", id+".png"), depthImage(FixtureDepth))
			}
			label := image.NewGray(image.Rect(0, 0, FixtureW, FixtureH))
			for k, inst := range s.Instances {
				for y := 1; y < 4; y++ {
					for x := 1 + 4*k; x < 4+4*k && x < FixtureW; x++ {
						label.SetGray(x, y, color.Gray{Y: uint8(inst)})
					}
				}
			}
			writePNG(t, fsys, filepath.Join(dir, "instance", id+".png"), label)
		}
		if s.WithK {
			writeFile(t, fsys, filepath.Join(dir, "camera.yml"), "cam_K: "+floatList(FixtureK)+"\ndepth_scale: 1.0\n")
		}
	}
}

func colorImage(seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, FixtureW, FixtureH))
	for i := range img.Pix {
		img.Pix[i] = uint8(seed*7 + i)
	}
	return img
}

func depthImage(mm uint16) image.Image {
	img := image.NewGray16(image.Rect(0, 0, FixtureW, FixtureH))
	for y := 0; y < FixtureH; y++ {
		for x := 0; x < FixtureW; x++ {
			img.SetGray16(x, y, color.Gray16{Y: mm})
		}
	}
	return img
}

// squareLabel paints a 4x4 square whose position shifts with frame.
func squareLabel(v uint8, frame int) image.Image {
	img := image.NewGray(image.Rect(0, 0, FixtureW, FixtureH))
	off := frame % (FixtureW - 5)
	for y := 2; y < 6; y++ {
		for x := off + 1; x < off+5; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func floatList(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func writePNG(t testing.TB, fsys fsutil.FileSystem, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeFile(t testing.TB, fsys fsutil.FileSystem, path, content string) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := fsys.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
