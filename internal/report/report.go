// Package report scores a results store against ground truth and renders
// the errors as plots.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/geom"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/units"
)

// Thresholds of the n-degree n-centimetre success ratio.
const (
	SuccessRotDeg = 5.0
	SuccessTransM = 0.05
	// ADDFraction of the model diameter under which an ADD error counts
	// as correct.
	ADDFraction = 0.1
)

// Truth maps result keys to ground-truth poses.
type Truth map[results.Key]geom.Pose

// Model is the per-object data the ADD metric needs.
type Model struct {
	Points   []r3.Vector
	Diameter float64 // metres
}

// EntryError is the error of one stored prediction.
type EntryError struct {
	results.Key
	RotDeg float64
	TransM float64
	// ADD is the mean model-point distance, NaN without a model.
	ADD      float64
	Identity bool
}

// Summary aggregates the entries that had ground truth.
type Summary struct {
	Count    int // entries with ground truth
	NoTruth  int // entries without
	Identity int // identity fallbacks among Count

	RotMean, RotMedian, RotStd       float64
	TransMean, TransMedian, TransStd float64

	// Success is the share of Count within SuccessRotDeg and SuccessTransM.
	Success float64
	// ADDAccuracy is the share of entries with a model whose ADD is under
	// ADDFraction of the diameter; NaN when no entry had a model.
	ADDAccuracy float64
}

// Report is the scored run.
type Report struct {
	Entries []EntryError
	Summary Summary
}

// Evaluate scores every entry of store that has a truth pose. Identity
// fallbacks are scored like any other prediction; they count against the
// success ratio. models may be nil.
func Evaluate(store *results.Store, truth Truth, models map[int]Model) *Report {
	rep := &Report{}
	var rot, trans []float64
	success, addOK, addN := 0, 0, 0
	for _, e := range store.Triples() {
		gt, ok := truth[e.Key]
		if !ok {
			rep.Summary.NoTruth++
			continue
		}
		ee := EntryError{
			Key:      e.Key,
			RotDeg:   geom.RotationErrorDeg(e.Pose, gt),
			TransM:   geom.TranslationError(e.Pose, gt),
			ADD:      math.NaN(),
			Identity: e.Pose.IsIdentity(),
		}
		if m, ok := models[e.ObjectID]; ok && len(m.Points) > 0 {
			ee.ADD = ADD(m.Points, e.Pose, gt)
			addN++
			if m.Diameter > 0 && ee.ADD < ADDFraction*m.Diameter {
				addOK++
			}
		}
		if ee.Identity {
			rep.Summary.Identity++
		}
		if ee.RotDeg < SuccessRotDeg && ee.TransM < SuccessTransM {
			success++
		}
		rot = append(rot, ee.RotDeg)
		trans = append(trans, ee.TransM)
		rep.Entries = append(rep.Entries, ee)
	}

	s := &rep.Summary
	s.Count = len(rep.Entries)
	s.ADDAccuracy = math.NaN()
	if addN > 0 {
		s.ADDAccuracy = float64(addOK) / float64(addN)
	}
	if s.Count == 0 {
		return rep
	}
	s.Success = float64(success) / float64(s.Count)
	s.RotMean, s.RotStd = stat.MeanStdDev(rot, nil)
	s.TransMean, s.TransStd = stat.MeanStdDev(trans, nil)
	s.RotMedian = median(rot)
	s.TransMedian = median(trans)
	if s.Count == 1 {
		s.RotStd, s.TransStd = 0, 0
	}
	return rep
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// ADD is the mean distance between model points under the predicted and
// the true pose.
func ADD(points []r3.Vector, pred, gt geom.Pose) float64 {
	if len(points) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, p := range points {
		px, py, pz := pred.Apply(p.X, p.Y, p.Z)
		gx, gy, gz := gt.Apply(p.X, p.Y, p.Z)
		sum += r3.Vector{X: px - gx, Y: py - gy, Z: pz - gz}.Norm()
	}
	return sum / float64(len(points))
}

func (s Summary) String() string {
	return fmt.Sprintf("%d scored (%d identity, %d without truth): rot mean %.2f median %.2f std %.2f deg; trans mean %.4f median %.4f std %.4f m; %.0f/%.0f success %.1f%%; ADD-0.1d %.1f%%",
		s.Count, s.Identity, s.NoTruth,
		s.RotMean, s.RotMedian, s.RotStd,
		s.TransMean, s.TransMedian, s.TransStd,
		SuccessRotDeg, units.MToCM(SuccessTransM), 100*s.Success, 100*s.ADDAccuracy)
}

// LinemodTruth loads the ground truth of every LINEMOD video present in
// store. Video ids are object ids.
func LinemodTruth(ds *dataset.LinemodDataset, store *results.Store, opts dataset.LinemodOptions) (Truth, error) {
	truth := make(Truth)
	for _, videoID := range store.Videos() {
		obID, err := strconv.Atoi(videoID)
		if err != nil {
			return nil, fmt.Errorf("video %q is not a LINEMOD object id", videoID)
		}
		r, err := ds.Video(obID, opts)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r.Len(); i++ {
			gt, err := r.GTPose(i, obID)
			if err != nil {
				continue
			}
			truth[results.Key{VideoID: r.VideoID(), FrameID: r.IDStr(i), ObjectID: obID}] = gt
		}
	}
	return truth, nil
}

// LinemodModels collects the GT model points and diameters of the objects
// in store.
func LinemodModels(ds *dataset.LinemodDataset, store *results.Store) (map[int]Model, error) {
	models := make(map[int]Model)
	for _, e := range store.Triples() {
		if _, ok := models[e.ObjectID]; ok {
			continue
		}
		m, err := ds.GTMesh(e.ObjectID)
		if err != nil {
			return nil, err
		}
		models[e.ObjectID] = Model{Points: m.Vertices, Diameter: ds.Diameter(e.ObjectID)}
	}
	return models, nil
}
