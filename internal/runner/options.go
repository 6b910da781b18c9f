// Package runner drives datasets through an estimator and collects the
// per-frame poses into a results store.
package runner

import (
	"fmt"
	"time"

	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/timeutil"
)

// Options are shared by every run.
type Options struct {
	// Debug 2 writes each selected mask under DebugDir/masks; 3 also
	// exports the posed model to DebugDir/model_tf.obj.
	Debug      int
	DebugDir   string
	DetectType mask.DetectType
	// Objects restricts the run to these ids; empty means all.
	Objects []int
	// Device is the compute device passed to the estimator.
	Device string
	Clock  timeutil.Clock
	// FS receives debug artefacts. Defaults to the OS filesystem.
	FS fsutil.FileSystem
}

func (o Options) withDefaults() Options {
	if o.DetectType == "" {
		o.DetectType = mask.DetectMask
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.FS == nil {
		o.FS = fsutil.OSFileSystem{}
	}
	return o
}

func (o Options) wantObject(id int) bool {
	if len(o.Objects) == 0 {
		return true
	}
	for _, v := range o.Objects {
		if v == id {
			return true
		}
	}
	return false
}

// Stats counts what happened to every processed entry.
type Stats struct {
	Frames      int // (frame, object) entries visited
	Estimated   int
	MissingK    int
	MissingMask int
	MissingData int // colour or depth unreadable
	Failed      int // estimator errors
	Objects     int // estimator resets
	Elapsed     time.Duration
	// RegisterTime is the total time spent inside Register.
	RegisterTime time.Duration
}

// Identity is the number of entries stored as the identity fallback.
func (s Stats) Identity() int {
	return s.MissingK + s.MissingMask + s.MissingData + s.Failed
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Frames += o.Frames
	s.Estimated += o.Estimated
	s.MissingK += o.MissingK
	s.MissingMask += o.MissingMask
	s.MissingData += o.MissingData
	s.Failed += o.Failed
	s.Objects += o.Objects
	s.Elapsed += o.Elapsed
	s.RegisterTime += o.RegisterTime
}

func (s Stats) String() string {
	per := time.Duration(0)
	if s.Estimated > 0 {
		per = s.RegisterTime / time.Duration(s.Estimated)
	}
	return fmt.Sprintf("%d entries: %d estimated, %d identity (missing K %d, missing mask %d, missing data %d, failed %d); %d objects in %v (%v/register)",
		s.Frames, s.Estimated, s.Identity(), s.MissingK, s.MissingMask, s.MissingData, s.Failed,
		s.Objects, s.Elapsed.Round(time.Millisecond), per.Round(time.Microsecond))
}
