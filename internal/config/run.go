package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

//go:embed run.defaults.json
var defaultsJSON []byte

// Detection types accepted by detect_type.
const (
	DetectBox      = "box"
	DetectMask     = "mask"
	DetectDetected = "detected"
)

// RunConfig is the optional JSON file passed to the drivers with -config.
// Every field is optional; the Get* methods supply defaults.
type RunConfig struct {
	DetectType    *string `json:"detect_type,omitempty"`
	Objects       []int   `json:"objects,omitempty"`
	Device        *string `json:"device,omitempty"`
	EstimatorAddr *string `json:"estimator_addr,omitempty"`

	RegisterTimeout *string `json:"register_timeout,omitempty"` // duration string like "30s"

	SymmetryStepDeg      *float64 `json:"symmetry_step_deg,omitempty"`
	Zfar                 *float64 `json:"zfar,omitempty"`
	UseReconstructedMesh *bool    `json:"use_reconstructed_mesh,omitempty"`
	Split                *string  `json:"split,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// DefaultRunConfig returns the embedded run.defaults.json. The drivers take
// their flag defaults from it.
func DefaultRunConfig() *RunConfig {
	cfg, err := parseRunConfig(defaultsJSON)
	if err != nil {
		panic("run.defaults.json: " + err.Error())
	}
	return cfg
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parseRunConfig(data)
}

func parseRunConfig(data []byte) (*RunConfig, error) {
	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *RunConfig) Validate() error {
	if c.DetectType != nil {
		switch *c.DetectType {
		case DetectBox, DetectMask, DetectDetected:
		default:
			return fmt.Errorf("detect_type must be one of box, mask, detected, got %q", *c.DetectType)
		}
	}
	for _, id := range c.Objects {
		if id <= 0 {
			return fmt.Errorf("objects must be positive ids, got %d", id)
		}
	}
	if c.RegisterTimeout != nil && *c.RegisterTimeout != "" {
		d, err := time.ParseDuration(*c.RegisterTimeout)
		if err != nil {
			return fmt.Errorf("invalid register_timeout '%s': %w", *c.RegisterTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("register_timeout must be non-negative, got %s", d)
		}
	}
	if c.SymmetryStepDeg != nil {
		if *c.SymmetryStepDeg <= 0 || *c.SymmetryStepDeg > 360 {
			return fmt.Errorf("symmetry_step_deg must be in (0, 360], got %f", *c.SymmetryStepDeg)
		}
	}
	if c.Zfar != nil && *c.Zfar < 0 {
		return fmt.Errorf("zfar must be non-negative, got %f", *c.Zfar)
	}
	if c.Split != nil {
		switch *c.Split {
		case "", "test", "train":
		default:
			return fmt.Errorf("split must be empty, test or train, got %q", *c.Split)
		}
	}
	return nil
}

// GetDetectType returns detect_type or "mask".
func (c *RunConfig) GetDetectType() string {
	if c.DetectType == nil || *c.DetectType == "" {
		return DetectMask
	}
	return *c.DetectType
}

// GetObjects returns the object filter; empty means all objects.
func (c *RunConfig) GetObjects() []int {
	return append([]int(nil), c.Objects...)
}

// GetDevice returns device or "cuda:0".
func (c *RunConfig) GetDevice() string {
	if c.Device == nil || *c.Device == "" {
		return "cuda:0"
	}
	return *c.Device
}

// GetEstimatorAddr returns estimator_addr. There is no default estimator:
// an empty address must be filled in by -estimator.
func (c *RunConfig) GetEstimatorAddr() string {
	if c.EstimatorAddr == nil {
		return ""
	}
	return *c.EstimatorAddr
}

// GetRegisterTimeout parses register_timeout. Zero disables the per-call
// deadline.
func (c *RunConfig) GetRegisterTimeout() time.Duration {
	if c.RegisterTimeout == nil || *c.RegisterTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.RegisterTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *RunConfig) GetSymmetryStepDeg() float64 {
	if c.SymmetryStepDeg == nil {
		return 5
	}
	return *c.SymmetryStepDeg
}

// GetZfar returns the depth clipping distance in metres.
func (c *RunConfig) GetZfar() float64 {
	if c.Zfar == nil {
		return 2.0
	}
	return *c.Zfar
}

func (c *RunConfig) GetUseReconstructedMesh() bool {
	if c.UseReconstructedMesh == nil {
		return false
	}
	return *c.UseReconstructedMesh
}

// GetSplit returns split; empty reads every frame.
func (c *RunConfig) GetSplit() string {
	if c.Split == nil {
		return ""
	}
	return *c.Split
}
