package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mesh"
	"github.com/banshee-data/posebench/internal/results"
)

// LinemodConfig configures a LINEMOD run.
type LinemodConfig struct {
	// Root is the Linemod_preprocessed directory.
	Root string
	FS   fsutil.FileSystem
	// UseReconstructedMesh loads RefViewDir/ob_NNNNNNN/model/model.obj
	// instead of the ground-truth model.
	UseReconstructedMesh bool
	RefViewDir           string
	Split                string
	Zfar                 float64
	SymmetryStepDeg      float64
	Estimator            estimator.Estimator
	Options              Options
}

// RunLinemod resets the estimator for each selected object, runs every
// frame of the object's video and merges the per-object stores.
func RunLinemod(ctx context.Context, cfg LinemodConfig) (res *results.Store, total Stats, err error) {
	opts := cfg.Options.withDefaults()
	if cfg.FS == nil {
		cfg.FS = fsutil.OSFileSystem{}
	}
	if cfg.SymmetryStepDeg <= 0 {
		cfg.SymmetryStepDeg = geom.DefaultSymmetryStepDeg
	}
	if cfg.Estimator == nil {
		return nil, total, errors.New("no estimator configured")
	}
	res = results.NewStore()
	start := opts.Clock.Now()
	defer func() { total.Elapsed = opts.Clock.Since(start) }()

	ds, err := dataset.OpenLinemod(cfg.FS, cfg.Root)
	if err != nil {
		return nil, total, err
	}
	ids, err := ds.ObjectIDs()
	if err != nil {
		return nil, total, err
	}

	for _, obID := range ids {
		if !opts.wantObject(obID) {
			continue
		}
		reader, err := ds.Video(obID, dataset.LinemodOptions{Split: cfg.Split, Zfar: cfg.Zfar})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				opsf("object %d: no video, skip: %v", obID, err)
				continue
			}
			return res, total, fmt.Errorf("object %d: %w", obID, err)
		}

		var model *mesh.Mesh
		if cfg.UseReconstructedMesh {
			model, err = ds.ReconstructedMesh(obID, cfg.RefViewDir)
		} else {
			model, err = ds.GTMesh(obID)
		}
		if err != nil {
			return res, total, fmt.Errorf("object %d mesh: %w", obID, err)
		}
		symmetry := ds.SymmetryTransforms(obID, cfg.SymmetryStepDeg)

		diagf("object %d: %d frames, %d vertices, %d symmetries", obID, reader.Len(), len(model.Vertices), len(symmetry))
		if err := cfg.Estimator.ResetObject(estimator.WithDevice(ctx, opts.Device), estimator.NewObject(obID, model, symmetry)); err != nil {
			return res, total, fmt.Errorf("reset object %d: %w", obID, err)
		}
		total.Objects++

		out, stats, err := RunWorker(ctx, Job{
			Reader:   reader,
			Frames:   AllFrames(reader.Len()),
			ObjectID: obID,
			Mesh:     model,
		}, cfg.Estimator, opts)
		res.Merge(out)
		stats.Elapsed = 0
		total.Add(stats)
		if err != nil {
			return res, total, err
		}
	}
	return res, total, nil
}
