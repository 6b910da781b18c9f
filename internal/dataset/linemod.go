package dataset

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/mesh"
	"github.com/banshee-data/posebench/internal/units"
)

// gtEntry is one object annotation of a gt.yml frame. Translation is in
// millimetres.
type gtEntry struct {
	R     []float64 `yaml:"cam_R_m2c"`
	T     []float64 `yaml:"cam_t_m2c"`
	BB    []int     `yaml:"obj_bb"`
	ObjID int       `yaml:"obj_id"`
}

// camInfo is one frame of info.yml.
type camInfo struct {
	K          []float64 `yaml:"cam_K"`
	DepthScale float64   `yaml:"depth_scale"`
}

// modelInfo is one entry of models_info.yml.
type modelInfo struct {
	Diameter          float64 `yaml:"diameter"`
	geom.SymmetryInfo `yaml:",inline"`
}

// LinemodOptions tunes a Linemod video reader.
type LinemodOptions struct {
	// Split restricts frames to those listed in <split>.txt ("train",
	// "test"); empty reads every colour file.
	Split string
	// Zfar clips depth at this distance in metres; <= 0 disables.
	Zfar float64
}

// FrameKey formats a frame number the way intrinsics are keyed.
func FrameKey(n int) string {
	return fmt.Sprintf("%06d", n)
}

// Linemod reads one preprocessed LINEMOD video directory
// (Linemod_preprocessed/data/NN).
type Linemod struct {
	fs      fsutil.FileSystem
	baseDir string
	videoID string
	opts    LinemodOptions

	colorFiles []string
	idStrs     []string
	frameNums  []int

	// Intrinsics keyed by FrameKey(frame number).
	Ks          map[string]geom.Intrinsics
	depthScales map[string]float64
	gt          map[int][]gtEntry
}

// NewLinemod indexes videoDir. gt.yml and info.yml are optional; frames
// without an entry report ErrNoGroundTruth / ErrNoIntrinsics.
func NewLinemod(fsys fsutil.FileSystem, videoDir string, opts LinemodOptions) (*Linemod, error) {
	r := &Linemod{
		fs:          fsys,
		baseDir:     filepath.Clean(videoDir),
		opts:        opts,
		Ks:          make(map[string]geom.Intrinsics),
		depthScales: make(map[string]float64),
		gt:          make(map[int][]gtEntry),
	}

	base := filepath.Base(r.baseDir)
	if n, err := strconv.Atoi(base); err == nil {
		r.videoID = strconv.Itoa(n)
	} else {
		r.videoID = base
	}

	names, err := fsys.List(filepath.Join(r.baseDir, "rgb"))
	if err != nil {
		return nil, fmt.Errorf("list colour images: %w", err)
	}
	keep, err := r.splitFilter()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".png" && ext != ".jpg" {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		num, err := strconv.Atoi(id)
		if err != nil {
			debugf("skipping non-numeric frame %s", name)
			continue
		}
		if keep != nil && !keep[num] {
			continue
		}
		r.colorFiles = append(r.colorFiles, filepath.Join(r.baseDir, "rgb", name))
		r.idStrs = append(r.idStrs, id)
		r.frameNums = append(r.frameNums, num)
	}
	if len(r.colorFiles) == 0 {
		return nil, fmt.Errorf("no colour frames under %s", r.baseDir)
	}

	if err := r.loadInfo(); err != nil {
		return nil, err
	}
	if err := r.loadGT(); err != nil {
		return nil, err
	}
	debugf("video %s: %d frames, %d intrinsics, %d gt frames", r.videoID, len(r.colorFiles), len(r.Ks), len(r.gt))
	return r, nil
}

func (r *Linemod) splitFilter() (map[int]bool, error) {
	if r.opts.Split == "" {
		return nil, nil
	}
	data, err := r.fs.ReadFile(filepath.Join(r.baseDir, r.opts.Split+".txt"))
	if err != nil {
		return nil, fmt.Errorf("read split %q: %w", r.opts.Split, err)
	}
	keep := make(map[int]bool)
	for _, line := range strings.Fields(string(data)) {
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("split %q: bad frame %q", r.opts.Split, line)
		}
		keep[n] = true
	}
	return keep, nil
}

func (r *Linemod) loadInfo() error {
	data, err := r.fs.ReadFile(filepath.Join(r.baseDir, "info.yml"))
	if errors.Is(err, fs.ErrNotExist) {
		debugf("video %s has no info.yml", r.videoID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read info.yml: %w", err)
	}
	var info map[int]camInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parse info.yml: %w", err)
	}
	for n, ci := range info {
		k, err := geom.IntrinsicsFromSlice(ci.K)
		if err != nil {
			debugf("frame %d: %v", n, err)
			continue
		}
		r.Ks[FrameKey(n)] = k
		if ci.DepthScale > 0 {
			r.depthScales[FrameKey(n)] = ci.DepthScale
		}
	}
	return nil
}

func (r *Linemod) loadGT() error {
	data, err := r.fs.ReadFile(filepath.Join(r.baseDir, "gt.yml"))
	if errors.Is(err, fs.ErrNotExist) {
		debugf("video %s has no gt.yml", r.videoID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read gt.yml: %w", err)
	}
	if err := yaml.Unmarshal(data, &r.gt); err != nil {
		return fmt.Errorf("parse gt.yml: %w", err)
	}
	return nil
}

func (r *Linemod) VideoID() string { return r.videoID }

func (r *Linemod) Len() int { return len(r.colorFiles) }

func (r *Linemod) IDStr(i int) string { return r.idStrs[i] }

func (r *Linemod) ColorPath(i int) string { return r.colorFiles[i] }

// OpenFile reads auxiliary files such as detected labels through the
// reader's filesystem.
func (r *Linemod) OpenFile(path string) (io.ReadCloser, error) { return r.fs.Open(path) }

// FrameNumber is the numeric frame id of frame i.
func (r *Linemod) FrameNumber(i int) int { return r.frameNums[i] }

func (r *Linemod) Color(i int) (image.Image, error) {
	return decodeImage(r.fs, r.colorFiles[i])
}

func (r *Linemod) Depth(i int) (*DepthMap, error) {
	path := filepath.Join(r.baseDir, "depth", r.idStrs[i]+".png")
	img, err := decodeImage(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDepth, path)
	}
	if err != nil {
		return nil, err
	}
	scale, ok := r.depthScales[FrameKey(r.frameNums[i])]
	if !ok {
		scale = 1
	}
	return depthFromImage(img, scale, r.opts.Zfar), nil
}

// Mask returns the stored object mask (any non-zero pixel). The
// preprocessed layout stores one mask per frame for the video's object.
func (r *Linemod) Mask(i, obID int) (*mask.Mask, error) {
	path := filepath.Join(r.baseDir, "mask", r.idStrs[i]+".png")
	img, err := decodeImage(r.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoMask, path)
	}
	if err != nil {
		return nil, err
	}
	return mask.FromImage(img, func(v uint16) bool { return v > 0 }), nil
}

func (r *Linemod) K(i int) (geom.Intrinsics, error) {
	key := FrameKey(r.frameNums[i])
	k, ok := r.Ks[key]
	if !ok {
		return geom.Intrinsics{}, fmt.Errorf("%w: frame %s", ErrNoIntrinsics, key)
	}
	return k, nil
}

// GTPose returns the annotated model-to-camera pose with translation in
// metres.
func (r *Linemod) GTPose(i, obID int) (geom.Pose, error) {
	for _, e := range r.gt[r.frameNums[i]] {
		if e.ObjID != obID {
			continue
		}
		if len(e.R) != 9 || len(e.T) != 3 {
			return geom.Pose{}, fmt.Errorf("frame %s object %d: malformed annotation", r.idStrs[i], obID)
		}
		var R [9]float64
		copy(R[:], e.R)
		return geom.PoseFromRt(R, [3]float64{units.MMToM(e.T[0]), units.MMToM(e.T[1]), units.MMToM(e.T[2])}), nil
	}
	return geom.Pose{}, fmt.Errorf("%w: frame %s object %d", ErrNoGroundTruth, r.idStrs[i], obID)
}

// LinemodDataset is the Linemod_preprocessed root: object videos under
// data/NN and models under models/.
type LinemodDataset struct {
	fs   fsutil.FileSystem
	Root string

	info map[int]modelInfo
}

// OpenLinemod indexes root. models/models_info.yml is optional.
func OpenLinemod(fsys fsutil.FileSystem, root string) (*LinemodDataset, error) {
	d := &LinemodDataset{fs: fsys, Root: filepath.Clean(root), info: make(map[int]modelInfo)}
	if !fsys.Exists(filepath.Join(d.Root, "data")) {
		return nil, fmt.Errorf("%s is not a LINEMOD root (no data/ directory)", root)
	}
	data, err := fsys.ReadFile(filepath.Join(d.Root, "models", "models_info.yml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		debugf("no models_info.yml under %s", d.Root)
	case err != nil:
		return nil, fmt.Errorf("read models_info.yml: %w", err)
	default:
		if err := yaml.Unmarshal(data, &d.info); err != nil {
			return nil, fmt.Errorf("parse models_info.yml: %w", err)
		}
	}
	return d, nil
}

// ObjectIDs lists objects that have a video directory, ascending.
func (d *LinemodDataset) ObjectIDs() ([]int, error) {
	names, err := d.fs.List(filepath.Join(d.Root, "data"))
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	var ids []int
	for _, n := range names {
		id, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// VideoDir is the video directory of object obID.
func (d *LinemodDataset) VideoDir(obID int) string {
	return filepath.Join(d.Root, "data", fmt.Sprintf("%02d", obID))
}

// Video opens the video reader of object obID.
func (d *LinemodDataset) Video(obID int, opts LinemodOptions) (*Linemod, error) {
	return NewLinemod(d.fs, d.VideoDir(obID), opts)
}

// GTMesh loads models/obj_NN.ply scaled from millimetres to metres.
func (d *LinemodDataset) GTMesh(obID int) (*mesh.Mesh, error) {
	m, err := mesh.Load(d.fs, filepath.Join(d.Root, "models", fmt.Sprintf("obj_%02d.ply", obID)))
	if err != nil {
		return nil, err
	}
	m.Scale(units.MMToM(1))
	return m, nil
}

// ReconstructedMesh loads the model reconstructed from reference views,
// <refViewDir>/ob_NNNNNNN/model/model.obj, already in metres.
func (d *LinemodDataset) ReconstructedMesh(obID int, refViewDir string) (*mesh.Mesh, error) {
	return mesh.Load(d.fs, filepath.Join(refViewDir, fmt.Sprintf("ob_%07d", obID), "model", "model.obj"))
}

// SymmetryTransforms expands the object's models_info symmetries. Objects
// without an entry get the identity only.
func (d *LinemodDataset) SymmetryTransforms(obID int, stepDeg float64) []geom.Pose {
	return geom.SymmetryTransforms(d.info[obID].SymmetryInfo, stepDeg)
}

// Diameter returns the model diameter in metres, 0 if unknown.
func (d *LinemodDataset) Diameter(obID int) float64 {
	return units.MMToM(d.info[obID].Diameter)
}
