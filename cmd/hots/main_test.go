package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posebench/internal/db"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/testutil"
)

func TestParseFlags(t *testing.T) {
	_, err := parseFlags(nil)
	assert.ErrorIs(t, err, errNoEstimator)

	cfg, err := parseFlags([]string{"-estimator", "gpu-host:50051"})
	require.NoError(t, err)
	assert.Equal(t, "HOTS_v1", cfg.HOTSDir)
	assert.Equal(t, "debug", cfg.DebugDir)
	assert.Equal(t, "gpu-host:50051", cfg.Estimator)
	assert.Equal(t, "mask", cfg.DetectType)
	assert.Empty(t, cfg.MeshDir)

	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"device":"cpu","estimator_addr":"gpu-host:50051"}`), 0644))
	cfg, err = parseFlags([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, "gpu-host:50051", cfg.Estimator)

	cfg, err = parseFlags([]string{"-config", path, "-estimator", "oracle"})
	require.NoError(t, err)
	assert.Equal(t, "oracle", cfg.Estimator)

	_, err = parseFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	testutil.WriteHOTS(t, fsys, "/HOTS_v1",
		testutil.HOTSScene{Name: "desk_1", Frames: 2, Instances: []int{4, 9}, WithK: true, WithDepth: true},
		testutil.HOTSScene{Name: "kitchen_2", Frames: 1, Instances: []int{3}, WithDepth: true},
	)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	cfg, err := parseFlags([]string{"-hots-dir", "/HOTS_v1", "-debug-dir", "/out", "-db", dbPath, "-estimator", "oracle"})
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), cfg, fsys))

	res, err := results.ReadYAML(fsys, "/out/hots_res.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"desk_1", "kitchen_2"}, res.Videos())
	assert.Equal(t, 5, res.Len())
	// HOTS has no ground truth, so the oracle answers identity everywhere.
	assert.Equal(t, 5, res.IdentityCount())

	store, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "hots", runs[0].Dataset)
	assert.Equal(t, 5, runs[0].Entries)
}

func TestRunMissingRoot(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	cfg, err := parseFlags([]string{"-hots-dir", "/nope", "-debug-dir", "/out", "-estimator", "oracle"})
	require.NoError(t, err)
	assert.Error(t, run(context.Background(), cfg, fsys))
	assert.False(t, fsys.Exists("/out/hots_res.yml"))
}
