// Command hots runs a pose estimator over every scene of the HOTS dataset,
// registering each labelled instance, and writes hots_res.yml.
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
	"syscall"
	"time"

	"github.com/banshee-data/posebench/internal/config"
	"github.com/banshee-data/posebench/internal/dataset"
	"github.com/banshee-data/posebench/internal/db"
	"github.com/banshee-data/posebench/internal/estimator"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/mask"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/runner"
	"github.com/banshee-data/posebench/internal/version"
)

// Config holds the command-line configuration.
type Config struct {
	HOTSDir         string
	MeshDir         string
	Debug           int
	DebugDir        string
	DetectType      string
	Estimator       string
	Device          string
	RegisterTimeout time.Duration
	Zfar            float64
	ConfigFile      string
	DBPath          string
	ShowVersion     bool
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.ShowVersion {
		fmt.Println(version.String("hots"))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, fsutil.OSFileSystem{}); err != nil {
		log.Fatalf("hots: %v", err)
	}
}

var errNoEstimator = errors.New("-estimator is required: a gRPC address, or oracle to replay ground truth")

func parseFlags(args []string) (Config, error) {
	defaults := config.DefaultRunConfig()
	cfg := Config{}

	fs := flag.NewFlagSet("hots", flag.ContinueOnError)
	fs.StringVar(&cfg.HOTSDir, "hots-dir", "HOTS_v1", "HOTS dataset root directory")
	fs.StringVar(&cfg.MeshDir, "mesh-dir", "", "Directory of obj_NN.ply/.obj instance models (default unit boxes)")
	fs.IntVar(&cfg.Debug, "debug", 0, "Debug level (0 for no debug)")
	fs.StringVar(&cfg.DebugDir, "debug-dir", "debug", "Directory to save results and debug information")
	fs.StringVar(&cfg.DetectType, "detect-type", defaults.GetDetectType(), "Mask strategy: box, mask or detected")
	fs.StringVar(&cfg.Estimator, "estimator", defaults.GetEstimatorAddr(), "Estimator gRPC address (required), or oracle to replay ground truth")
	fs.StringVar(&cfg.Device, "device", defaults.GetDevice(), "Compute device passed to the estimator")
	fs.DurationVar(&cfg.RegisterTimeout, "register-timeout", defaults.GetRegisterTimeout(), "Per-call estimator timeout (0 disables)")
	fs.Float64Var(&cfg.Zfar, "zfar", defaults.GetZfar(), "Clip depth beyond this many metres (0 disables)")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional JSON run config; flags given explicitly override it")
	fs.StringVar(&cfg.DBPath, "db", "", "Record the run in this SQLite database")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.ConfigFile != "" {
		rc, err := config.LoadRunConfig(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["detect-type"] {
			cfg.DetectType = rc.GetDetectType()
		}
		if !set["estimator"] {
			cfg.Estimator = rc.GetEstimatorAddr()
		}
		if !set["device"] {
			cfg.Device = rc.GetDevice()
		}
		if !set["register-timeout"] {
			cfg.RegisterTimeout = rc.GetRegisterTimeout()
		}
		if !set["zfar"] {
			cfg.Zfar = rc.GetZfar()
		}
	}
	if cfg.Estimator == "" && !cfg.ShowVersion {
		return cfg, errNoEstimator
	}
	return cfg, nil
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
		log.Printf("WARNING: -estimator oracle replays ground truth; %s poses are not predictions", filepath.Join(cfg.DebugDir, "hots_res.yml"))
	}

	started := time.Now()
	res, stats, runErr := runner.RunHOTS(ctx, runner.HOTSConfig{
		Root:      cfg.HOTSDir,
		FS:        fsys,
		MeshDir:   cfg.MeshDir,
		Zfar:      cfg.Zfar,
		Estimator: est,
		Options: runner.Options{
			Debug:      cfg.Debug,
			DebugDir:   cfg.DebugDir,
			DetectType: detectType,
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

	out := filepath.Join(cfg.DebugDir, "hots_res.yml")
	if err := results.WriteYAML(fsys, out, res); err != nil {
		return err
	}
	log.Printf("wrote %d entries to %s", res.Len(), out)

	if cfg.DBPath != "" {
		store, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.RecordRun("hots", string(detectType), cfg, started, time.Now(), stats, res)
		if err != nil {
			return err
		}
		log.Printf("recorded run %s in %s", runID, cfg.DBPath)
	}
	return runErr
}
