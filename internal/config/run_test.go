package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()

	if cfg.DetectType == nil || *cfg.DetectType != "mask" {
		t.Errorf("Expected DetectType mask, got %v", cfg.DetectType)
	}
	if cfg.RegisterTimeout == nil || *cfg.RegisterTimeout != "30s" {
		t.Errorf("Expected RegisterTimeout '30s', got %v", cfg.RegisterTimeout)
	}
	if cfg.GetSymmetryStepDeg() != 5 {
		t.Errorf("GetSymmetryStepDeg() = %f, want 5", cfg.GetSymmetryStepDeg())
	}
	if cfg.GetEstimatorAddr() != "" {
		t.Errorf("GetEstimatorAddr() = %q, want no default estimator", cfg.GetEstimatorAddr())
	}
	assert.NoError(t, cfg.Validate())
}

func TestEmptyRunConfigGetters(t *testing.T) {
	cfg := EmptyRunConfig()
	assert.Equal(t, "mask", cfg.GetDetectType())
	assert.Empty(t, cfg.GetObjects())
	assert.Equal(t, "cuda:0", cfg.GetDevice())
	assert.Equal(t, "", cfg.GetEstimatorAddr())
	assert.Equal(t, 30*time.Second, cfg.GetRegisterTimeout())
	assert.Equal(t, 2.0, cfg.GetZfar())
	assert.False(t, cfg.GetUseReconstructedMesh())
	assert.Equal(t, "", cfg.GetSplit())
}

func TestDefaultsFileMatchesGetters(t *testing.T) {
	file := DefaultRunConfig()
	require.NotNil(t, file.DetectType, "embedded defaults must set detect_type")
	require.NotNil(t, file.Zfar, "embedded defaults must set zfar")
	empty := EmptyRunConfig()

	assert.Equal(t, empty.GetDetectType(), file.GetDetectType())
	assert.Equal(t, empty.GetDevice(), file.GetDevice())
	assert.Equal(t, empty.GetEstimatorAddr(), file.GetEstimatorAddr())
	assert.Equal(t, empty.GetRegisterTimeout(), file.GetRegisterTimeout())
	assert.Equal(t, empty.GetSymmetryStepDeg(), file.GetSymmetryStepDeg())
	assert.Equal(t, empty.GetZfar(), file.GetZfar())
	assert.Equal(t, empty.GetUseReconstructedMesh(), file.GetUseReconstructedMesh())
	assert.Equal(t, empty.GetSplit(), file.GetSplit())
}

func TestLoadRunConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")
	testJSON := `{
  "detect_type": "box",
  "objects": [1, 5],
  "device": "cpu",
  "estimator_addr": "localhost:50051",
  "register_timeout": "2s",
  "use_reconstructed_mesh": true,
  "split": "test"
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadRunConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "box", cfg.GetDetectType())
	assert.Equal(t, []int{1, 5}, cfg.GetObjects())
	assert.Equal(t, "cpu", cfg.GetDevice())
	assert.Equal(t, "localhost:50051", cfg.GetEstimatorAddr())
	assert.Equal(t, 2*time.Second, cfg.GetRegisterTimeout())
	assert.True(t, cfg.GetUseReconstructedMesh())
	assert.Equal(t, "test", cfg.GetSplit())
	// Omitted fields keep their defaults.
	assert.Equal(t, 5.0, cfg.GetSymmetryStepDeg())
	assert.Nil(t, cfg.Zfar)
}

func TestLoadRunConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"wrong extension", write("run.yaml", `{}`), ".json extension"},
		{"missing", filepath.Join(tmpDir, "nope.json"), "failed to stat"},
		{"bad json", write("bad.json", `{`), "failed to parse"},
		{"bad detect type", write("dt.json", `{"detect_type":"yolo"}`), "detect_type"},
		{"bad object", write("ob.json", `{"objects":[0]}`), "objects"},
		{"bad timeout", write("to.json", `{"register_timeout":"soon"}`), "register_timeout"},
		{"bad step", write("st.json", `{"symmetry_step_deg":0}`), "symmetry_step_deg"},
		{"bad zfar", write("zf.json", `{"zfar":-1}`), "zfar"},
		{"bad split", write("sp.json", `{"split":"val"}`), "split"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRunConfig(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRunConfigTooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	body := `{"device":"` + strings.Repeat("x", 1024*1024) + `"}`
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	_, err := LoadRunConfig(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
