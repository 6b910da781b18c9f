// Command linemod runs a pose estimator over the preprocessed LINEMOD
// dataset and writes every (video, frame, object) pose to linemod_res.yml.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/posebench/internal/config"
	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/db"
	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/report"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/runner"
	"github.com/banshee-data/posebench/internal/version"
)

// Config holds the command-line configuration.
type Config struct {
	LinemodDir           string
	UseReconstructedMesh bool
	RefViewDir           string
	Debug                int
	DebugDir             string
	DetectType           string
	Objects              []int
	Estimator            string
	Device               string
	RegisterTimeout      time.Duration
	Split                string
	Zfar                 float64
	SymmetryStepDeg      float64
	ConfigFile           string
	DBPath               string
	Report               bool
	ShowVersion          bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.ShowVersion {
		fmt.Println(version.String("linemod"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, fsutil.OSFileSystem{}); err != nil {
		log.Fatalf("linemod: %v", err)
	}
}

var errNoEstimator = errors.New("-estimator is required: a gRPC address, or oracle to replay ground truth")

func parseFlags(args []string) (Config, error) {
	defaults := config.DefaultRunConfig()
	cfg := Config{}
	var objects string

	fs := flag.NewFlagSet("linemod", flag.ContinueOnError)
	fs.StringVar(&cfg.LinemodDir, "linemod-dir", "/Linemod_preprocessed", "LINEMOD root directory")
	fs.BoolVar(&cfg.UseReconstructedMesh, "use-reconstructed-mesh", defaults.GetUseReconstructedMesh(), "Use the reconstructed mesh instead of the ground-truth model")
	fs.StringVar(&cfg.RefViewDir, "ref-view-dir", "/Linemod_preprocessed/ref_views", "Directory holding ob_NNNNNNN/model/model.obj")
	fs.IntVar(&cfg.Debug, "debug", 0, "Debug level (0 ops, 1 per-frame, 2 masks, 3 posed models)")
	fs.StringVar(&cfg.DebugDir, "debug-dir", "debug", "Directory for results and debug output")
	fs.StringVar(&cfg.DetectType, "detect-type", defaults.GetDetectType(), "Mask strategy: box, mask or detected")
	fs.StringVar(&objects, "objects", "", "Comma-separated object ids (default all)")
	fs.StringVar(&cfg.Estimator, "estimator", defaults.GetEstimatorAddr(), "Estimator gRPC address (required), or oracle to replay ground truth")
	fs.StringVar(&cfg.Device, "device", defaults.GetDevice(), "Compute device passed to the estimator")
	fs.DurationVar(&cfg.RegisterTimeout, "register-timeout", defaults.GetRegisterTimeout(), "Per-call estimator timeout (0 disables)")
	fs.StringVar(&cfg.Split, "split", defaults.GetSplit(), "Restrict frames to <split>.txt (test, train; empty for all)")
	fs.Float64Var(&cfg.Zfar, "zfar", defaults.GetZfar(), "Clip depth beyond this many metres (0 disables)")
	fs.Float64Var(&cfg.SymmetryStepDeg, "symmetry-step-deg", defaults.GetSymmetryStepDeg(), "Sampling step for continuous symmetries")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional JSON run config; flags given explicitly override it")
	fs.StringVar(&cfg.DBPath, "db", "", "Record the run in this SQLite database")
	fs.BoolVar(&cfg.Report, "report", false, "Evaluate against ground truth and write plots to -debug-dir")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	var err error
	if cfg.Objects, err = parseObjects(objects); err != nil {
		return cfg, err
	}

	if cfg.ConfigFile != "" {
		rc, err := config.LoadRunConfig(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		applyRunConfig(&cfg, rc, setFlags(fs))
	}
	if cfg.Estimator == "" && !cfg.ShowVersion {
		return cfg, errNoEstimator
	}
	return cfg, nil
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyRunConfig copies file values for every flag not given explicitly.
func applyRunConfig(cfg *Config, rc *config.RunConfig, set map[string]bool) {
	if !set["detect-type"] {
		cfg.DetectType = rc.GetDetectType()
	}
	if !set["objects"] {
		cfg.Objects = rc.GetObjects()
	}
	if !set["device"] {
		cfg.Device = rc.GetDevice()
	}
	if !set["estimator"] {
		cfg.Estimator = rc.GetEstimatorAddr()
	}
	if !set["register-timeout"] {
		cfg.RegisterTimeout = rc.GetRegisterTimeout()
	}
	if !set["symmetry-step-deg"] {
		cfg.SymmetryStepDeg = rc.GetSymmetryStepDeg()
	}
	if !set["zfar"] {
		cfg.Zfar = rc.GetZfar()
	}
	if !set["use-reconstructed-mesh"] {
		cfg.UseReconstructedMesh = rc.GetUseReconstructedMesh()
	}
	if !set["split"] {
		cfg.Split = rc.GetSplit()
	}
}

func parseObjects(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid object id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func run(ctx context.Context, cfg Config, fsys fsutil.FileSystem) error {
	runner.SetLogLevel(cfg.Debug, os.Stderr)
	if cfg.Debug >= 2 {
		dataset.SetDebugLogger(os.Stderr)
	}

	detectType, err := mask.ParseDetectType(cfg.DetectType)
	if err != nil {
		return err
	}
	est, err := estimator.Open(cfg.Estimator, cfg.Device, cfg.RegisterTimeout)
	if err != nil {
		return err
	}
	defer est.Close()
	if cfg.Estimator == estimator.OracleAddr {
		log.Printf("WARNING: -estimator oracle replays ground truth; %s poses are not predictions", filepath.Join(cfg.DebugDir, "linemod_res.yml"))
	}

	started := time.Now()
	res, stats, runErr := runner.RunLinemod(ctx, runner.LinemodConfig{
		Root:                 cfg.LinemodDir,
		FS:                   fsys,
		UseReconstructedMesh: cfg.UseReconstructedMesh,
		RefViewDir:           cfg.RefViewDir,
		Split:                cfg.Split,
		Zfar:                 cfg.Zfar,
		SymmetryStepDeg:      cfg.SymmetryStepDeg,
		Estimator:            est,
		Options: runner.Options{
			Debug:      cfg.Debug,
			DebugDir:   cfg.DebugDir,
			DetectType: detectType,
			Objects:    cfg.Objects,
			Device:     cfg.Device,
			FS:         fsys,
		},
	})
	if res == nil {
		return runErr
	}
	if runErr != nil {
		log.Printf("run stopped early, writing partial results: %v", runErr)
	}
	log.Printf("%s", stats)

	out := filepath.Join(cfg.DebugDir, "linemod_res.yml")
	if err := results.WriteYAML(fsys, out, res); err != nil {
		return err
	}
	log.Printf("wrote %d entries to %s", res.Len(), out)

	if cfg.Report {
		if err := writeReport(cfg, fsys, res); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}

	if cfg.DBPath != "" {
		store, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.RecordRun("linemod", string(detectType), cfg, started, time.Now(), stats, res)
		if err != nil {
			return err
		}
		log.Printf("recorded run %s in %s", runID, cfg.DBPath)
	}
	return runErr
}

func writeReport(cfg Config, fsys fsutil.FileSystem, res *results.Store) error {
	ds, err := dataset.OpenLinemod(fsys, cfg.LinemodDir)
	if err != nil {
		return err
	}
	truth, err := report.LinemodTruth(ds, res, dataset.LinemodOptions{Split: cfg.Split, Zfar: cfg.Zfar})
	if err != nil {
		return err
	}
	models, err := report.LinemodModels(ds, res)
	if err != nil {
		return err
	}
	rep := report.Evaluate(res, truth, models)
	log.Printf("%s", rep.Summary)

	if err := rep.WritePlots(fsys, cfg.DebugDir); err != nil {
		return err
	}
	return rep.WriteHTML(fsys, filepath.Join(cfg.DebugDir, "report.html"))
}
