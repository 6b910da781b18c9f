package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/mesh"
	"github.com/banshee-data/posebench/internal/results"
)

// HOTSConfig configures a HOTS run.
type HOTSConfig struct {
	// Root is the HOTS_v1 directory.
	Root string
	FS   fsutil.FileSystem
	// MeshDir holds obj_NN.ply or obj_NN.obj per instance id, in metres.
	// Instances without a model, or every instance when MeshDir is empty,
	// use a unit box.
	MeshDir   string
	Zfar      float64
	Estimator estimator.Estimator
	Options   Options
}

// placeholderMesh is the model used when no mesh is available.
func placeholderMesh() *mesh.Mesh {
	return mesh.Box(r3.Vector{X: 1, Y: 1, Z: 1})
}

func loadInstanceMesh(fsys fsutil.FileSystem, dir string, id int) (*mesh.Mesh, error) {
	if dir == "" {
		return placeholderMesh(), nil
	}
	for _, ext := range []string{".ply", ".obj"} {
		m, err := mesh.Load(fsys, filepath.Join(dir, fmt.Sprintf("obj_%02d%s", id, ext)))
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	opsf("no mesh for instance %d under %s, using a unit box", id, dir)
	return placeholderMesh(), nil
}

// RunHOTS walks every scene, grouping the frames in which each instance id
// appears so that the estimator is reset once per instance per scene.
func RunHOTS(ctx context.Context, cfg HOTSConfig) (res *results.Store, total Stats, err error) {
	opts := cfg.Options.withDefaults()
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.Estimator == nil {
		return nil, total, errors.New("no estimator configured")
	}
	res = results.NewStore()
	start := opts.Clock.Now()
	defer func() { total.Elapsed = opts.Clock.Since(start) }()

	scenes, err := dataset.LoadHOTSScenes(cfg.FS, cfg.Root)
	if err != nil {
		return nil, total, err
	}

	meshes := make(map[int]*mesh.Mesh)
	current := -1
	for _, scene := range scenes {
		reader, err := dataset.NewHOTS(cfg.FS, filepath.Join(cfg.Root, scene), cfg.Zfar)
		if err != nil {
			return res, total, fmt.Errorf("scene %s: %w", scene, err)
		}
		diagf("scene %s: %d frames", scene, reader.Len())
		ids, frames := instanceFrames(reader, opts)
		for _, id := range ids {
			m, ok := meshes[id]
			if !ok {
				if m, err = loadInstanceMesh(cfg.FS, cfg.MeshDir, id); err != nil {
					return res, total, fmt.Errorf("instance %d mesh: %w", id, err)
				}
				meshes[id] = m
			}
			if id != current {
				obj := estimator.NewObject(id, m, nil)
				if err := cfg.Estimator.ResetObject(estimator.WithDevice(ctx, opts.Device), obj); err != nil {
					return res, total, fmt.Errorf("reset object %d: %w", id, err)
				}
				current = id
				total.Objects++
			}
			out, stats, err := RunWorker(ctx, Job{Reader: reader, Frames: frames[id], ObjectID: id, Mesh: m}, cfg.Estimator, opts)
			res.Merge(out)
			stats.Elapsed = 0
			total.Add(stats)
			if err != nil {
				return res, total, err
			}
		}
	}
	return res, total, nil
}

// instanceFrames maps every wanted instance id in the scene to the frames
// it appears in, in frame order. ids is ascending.
func instanceFrames(reader *dataset.HOTS, opts Options) (ids []int, frames map[int][]int) {
	frames = make(map[int][]int)
	for i := 0; i < reader.Len(); i++ {
		present, err := reader.FrameObjects(i)
		if err != nil {
			opsf("scene %s frame %s: no instance labels: %v", reader.VideoID(), reader.IDStr(i), err)
			continue
		}
		for _, id := range present {
			if !opts.wantObject(id) {
				continue
			}
			if _, ok := frames[id]; !ok {
				ids = append(ids, id)
			}
			frames[id] = append(frames[id], i)
		}
	}
	sort.Ints(ids)
	return ids, frames
}
