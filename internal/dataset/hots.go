package dataset

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
)

// hotsCamera is the optional per-scene camera.yml.
type hotsCamera struct {
	K          []float64 `yaml:"cam_K"`
	DepthScale float64   `yaml:"depth_scale"`
}

// HOTS reads one scene of the HOTS tabletop dataset:
// <scene>/rgb/*.png, <scene>/instance/*.png (per-pixel instance ids),
// optional <scene>/depth/*.png and <scene>/camera.yml.
// The scene name is the video id; instance ids are object ids.
type HOTS struct {
	fs       fsutil.FileSystem
	sceneDir string
	scene    string
	zfar     float64

	colorFiles []string
	idStrs     []string

	k          *geom.Intrinsics
	depthScale float64

	instances map[int]image.Image
}

// LoadHOTSScenes lists scene directories under root that contain an rgb/
// directory.
func LoadHOTSScenes(fsys fsutil.FileSystem, root string) ([]string, error) {
	names, err := fsys.List(root)
	if err != nil {
		return nil, fmt.Errorf("list HOTS root: %w", err)
	}
	var scenes []string
	for _, n := range names {
		if fsys.Exists(filepath.Join(root, n, "rgb")) {
			scenes = append(scenes, n)
		}
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("no HOTS scenes under %s", root)
	}
	sort.Strings(scenes)
	return scenes, nil
}

// NewHOTS indexes one scene directory. zfar <= 0 disables depth clipping.
func NewHOTS(fsys fsutil.FileSystem, sceneDir string, zfar float64) (*HOTS, error) {
	r := &HOTS{
		fs:         fsys,
		sceneDir:   filepath.Clean(sceneDir),
		scene:      filepath.Base(sceneDir),
		zfar:       zfar,
		depthScale: 1,
		instances:  make(map[int]image.Image),
	}
	names, err := fsys.List(filepath.Join(r.sceneDir, "rgb"))
	if err != nil {
		return nil, fmt.Errorf("list colour images: %w", err)
	}
	for _, n := range names {
		ext := strings.ToLower(filepath.Ext(n))
		if ext != ".png" && ext != ".jpg" {
			continue
		}
		r.colorFiles = append(r.colorFiles, filepath.Join(r.sceneDir, "rgb", n))
		r.idStrs = append(r.idStrs, strings.TrimSuffix(n, filepath.Ext(n)))
	}
	if len(r.colorFiles) == 0 {
		return nil, fmt.Errorf("no colour frames under %s", r.sceneDir)
	}

	data, err := fsys.ReadFile(filepath.Join(r.sceneDir, "camera.yml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		debugf("scene %s has no camera.yml, frames have no intrinsics", r.scene)
	case err != nil:
		return nil, fmt.Errorf("read camera.yml: %w", err)
	default:
		var cam hotsCamera
		if err := yaml.Unmarshal(data, &cam); err != nil {
			return nil, fmt.Errorf("parse camera.yml: %w", err)
		}
		k, err := geom.IntrinsicsFromSlice(cam.K)
		if err != nil {
			return nil, fmt.Errorf("camera.yml: %w", err)
		}
		r.k = &k
		if cam.DepthScale > 0 {
			r.depthScale = cam.DepthScale
		}
	}
	return r, nil
}

func (r *HOTS) VideoID() string { return r.scene }

func (r *HOTS) Len() int { return len(r.colorFiles) }

func (r *HOTS) IDStr(i int) string { return r.idStrs[i] }

func (r *HOTS) ColorPath(i int) string { return r.colorFiles[i] }

// OpenFile reads auxiliary files such as detected labels through the
// reader's filesystem.
func (r *HOTS) OpenFile(path string) (io.ReadCloser, error) { return r.fs.Open(path) }

func (r *HOTS) Color(i int) (image.Image, error) {
	return decodeImage(r.fs, r.colorFiles[i])
}

func (r *HOTS) Depth(i int) (*DepthMap, error) {
	path := filepath.Join(r.sceneDir, "depth", r.idStrs[i]+".png")
	img, err := decodeImage(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDepth, path)
	}
	if err != nil {
		return nil, err
	}
	return depthFromImage(img, r.depthScale, r.zfar), nil
}

func (r *HOTS) K(i int) (geom.Intrinsics, error) {
	if r.k == nil {
		return geom.Intrinsics{}, fmt.Errorf("%w: scene %s", ErrNoIntrinsics, r.scene)
	}
	return *r.k, nil
}

// GTPose always fails: HOTS carries no 6-DoF annotations.
func (r *HOTS) GTPose(i, obID int) (geom.Pose, error) {
	return geom.Pose{}, fmt.Errorf("%w: HOTS has no pose annotations", ErrNoGroundTruth)
}

func (r *HOTS) instance(i int) (image.Image, error) {
	if img, ok := r.instances[i]; ok {
		return img, nil
	}
	path := filepath.Join(r.sceneDir, "instance", r.idStrs[i]+".png")
	img, err := decodeImage(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoMask, path)
	}
	if err != nil {
		return nil, err
	}
	// Only the current frame is kept.
	r.instances = map[int]image.Image{i: img}
	return img, nil
}

// Mask returns the pixels labelled obID, ErrNoMask when none are.
func (r *HOTS) Mask(i, obID int) (*mask.Mask, error) {
	img, err := r.instance(i)
	if err != nil {
		return nil, err
	}
	id := uint16(obID)
	m := mask.FromImage(img, func(v uint16) bool { return v == id })
	if m.Empty() {
		return nil, fmt.Errorf("%w: frame %s has no instance %d", ErrNoMask, r.idStrs[i], obID)
	}
	return m, nil
}

// FrameObjects lists the instance ids present in frame i, ascending.
func (r *HOTS) FrameObjects(i int) ([]int, error) {
	img, err := r.instance(i)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if v := mask.RawValue(img, x, y); v != 0 {
				seen[int(v)] = true
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
