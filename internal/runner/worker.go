package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/mesh"
	"github.com/banshee-data/posebench/internal/monitoring"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/security"
)

// progressEvery is how many entries pass between progress lines.
const progressEvery = 100

// Job is one object over a set of frames of one video.
type Job struct {
	Reader   dataset.Reader
	Frames   []int
	ObjectID int
	// Mesh is the model loaded into the estimator, used for the debug
	// export. May be nil.
	Mesh *mesh.Mesh
}

// AllFrames returns 0..n-1.
func AllFrames(n int) []int {
	frames := make([]int, n)
	for i := range frames {
		frames[i] = i
	}
	return frames
}

// RunWorker registers job.ObjectID in each of job.Frames. Every visited
// frame gets exactly one entry in the returned store: the estimated pose,
// or identity when intrinsics, mask, images or the estimator fail. Only
// cancellation of ctx stops the loop early; the partial store is returned
// with ctx's error.
func RunWorker(ctx context.Context, job Job, est estimator.Estimator, opts Options) (store *results.Store, stats Stats, err error) {
	opts = opts.withDefaults()
	store = results.NewStore()
	start := opts.Clock.Now()
	defer func() { stats.Elapsed = opts.Clock.Since(start) }()

	ctx = estimator.WithDevice(ctx, opts.Device)
	r := job.Reader
	obID := job.ObjectID
	videoID := r.VideoID()
	progress := monitoring.NewProgress(fmt.Sprintf("[runner] video %s ob_id %d", videoID, obID), len(job.Frames), progressEvery)

	for n, i := range job.Frames {
		if err := ctx.Err(); err != nil {
			return store, stats, err
		}
		diagf("%d/%d, i_frame:%d, ob_id:%d", n, len(job.Frames), i, obID)
		idStr := r.IDStr(i)
		stats.Frames++
		progress.Step()

		k, err := r.K(i)
		if err != nil {
			opsf("K matrix not found for video %s frame %s: %v", videoID, idStr, err)
			store.SetIdentity(videoID, idStr, obID)
			stats.MissingK++
			continue
		}

		obMask, err := mask.Select(r, i, obID, opts.DetectType)
		if err == nil && obMask.Empty() {
			err = fmt.Errorf("%w: empty %s mask", mask.ErrNoMask, opts.DetectType)
		}
		if err != nil {
			opsf("ob_mask not found for video %s frame %s ob_id %d, skip: %v", videoID, idStr, obID, err)
			store.SetIdentity(videoID, idStr, obID)
			stats.MissingMask++
			continue
		}

		color, err := r.Color(i)
		if err != nil {
			opsf("color unreadable for video %s frame %s: %v", videoID, idStr, err)
			store.SetIdentity(videoID, idStr, obID)
			stats.MissingData++
			continue
		}
		depth, err := r.Depth(i)
		if err != nil {
			opsf("depth unreadable for video %s frame %s: %v", videoID, idStr, err)
			store.SetIdentity(videoID, idStr, obID)
			stats.MissingData++
			continue
		}

		obs := &estimator.Observation{
			K:        k,
			Color:    color,
			Depth:    depth,
			Mask:     obMask,
			ObjectID: obID,
		}
		if gt, err := r.GTPose(i, obID); err == nil {
			obs.GTPose = &gt
		} else if !errors.Is(err, dataset.ErrNoGroundTruth) {
			opsf("gt pose for video %s frame %s ob_id %d: %v", videoID, idStr, obID, err)
		}

		if opts.Debug >= 2 {
			writeMaskDebug(opts, videoID, idStr, obID, obMask)
		}

		t0 := opts.Clock.Now()
		pose, err := est.Register(ctx, obs)
		stats.RegisterTime += opts.Clock.Since(t0)
		if err != nil {
			if ctx.Err() != nil {
				return store, stats, ctx.Err()
			}
			opsf("register failed for video %s frame %s ob_id %d: %v", videoID, idStr, obID, err)
			store.SetIdentity(videoID, idStr, obID)
			stats.Failed++
			continue
		}
		tracef("pose:\n%v", pose)

		if opts.Debug >= 3 && job.Mesh != nil {
			writePosedModel(opts, job.Mesh, pose)
		}

		store.Set(videoID, idStr, obID, pose)
		stats.Estimated++
	}
	return store, stats, nil
}

func writeMaskDebug(opts Options, videoID, idStr string, obID int, m *mask.Mask) {
	dir := filepath.Join(opts.DebugDir, "masks", security.SanitizeFilename(videoID))
	if err := opts.FS.MkdirAll(dir, 0755); err != nil {
		opsf("create mask debug dir: %v", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_ob%02d.png", security.SanitizeFilename(idStr), obID))
	w, err := opts.FS.Create(path)
	if err != nil {
		opsf("create %s: %v", path, err)
		return
	}
	if err := m.WritePNG(w); err != nil {
		opsf("write %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		opsf("close %s: %v", path, err)
	}
}

// writePosedModel exports the model transformed by pose, overwriting the
// previous frame's export.
func writePosedModel(opts Options, m *mesh.Mesh, pose geom.Pose) {
	if err := opts.FS.MkdirAll(opts.DebugDir, 0755); err != nil {
		opsf("create debug dir: %v", err)
		return
	}
	tf := m.Clone()
	tf.Transform(pose)
	path := filepath.Join(opts.DebugDir, "model_tf.obj")
	if err := tf.SaveOBJ(opts.FS, path); err != nil {
		opsf("export posed model: %v", err)
	}
}
