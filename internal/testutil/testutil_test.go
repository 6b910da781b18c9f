package testutil

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/banshee-data/posebench/internal/fsutil"
)

// recordingTB captures failures instead of stopping the test.
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper()                           {}
func (r *recordingTB) Errorf(format string, args ...any) { r.failed = true }

func TestAssertStatusCode(t *testing.T) {
	rec := &recordingTB{TB: t}
	AssertStatusCode(rec, http.StatusOK, http.StatusOK)
	if rec.failed {
		t.Error("matching codes should pass")
	}
	AssertStatusCode(rec, http.StatusOK, http.StatusBadRequest)
	if !rec.failed {
		t.Error("mismatched codes should fail")
	}
}

func TestWriteLinemod(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	WriteLinemod(t, fsys, "lm", LinemodVideo{ObjectID: 1, Frames: 2, NoMask: map[int]bool{1: true}})

	for _, p := range []string{
		"lm/data/01/rgb/0000.png",
		"lm/data/01/rgb/0001.png",
		"lm/data/01/depth/0001.png",
		"lm/data/01/mask/0000.png",
		"lm/data/01/gt.yml",
		"lm/data/01/info.yml",
		"lm/models/obj_01.ply",
		"lm/models/models_info.yml",
	} {
		if !fsys.Exists(p) {
			t.Errorf("expected %s", p)
		}
	}
	if fsys.Exists(filepath.Join("lm", "data", "01", "mask", "0001.png")) {
		t.Error("mask for frame 1 should be omitted")
	}
}

func TestWriteHOTS(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	WriteHOTS(t, fsys, "hots", HOTSScene{Name: "kitchen_1", Frames: 1, Instances: []int{3}, WithK: true})

	for _, p := range []string{
		"hots/kitchen_1/rgb/kitchen_1_000.png",
		"hots/kitchen_1/instance/kitchen_1_000.png",
		"hots/kitchen_1/camera.yml",
	} {
		if !fsys.Exists(p) {
			t.Errorf("expected %s", p)
		}
	}
}
