// Command posedb manages the run history database written by the linemod
// and hots drivers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/posebench/internal/db"
	"github.com/banshee-data/posebench/internal/fsutil"
	"github.com/banshee-data/posebench/internal/results"
	"github.com/banshee-data/posebench/internal/security"
	"github.com/banshee-data/posebench/internal/version"
)

const defaultDBPath = "posebench.db"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := runCommand(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("posedb: %v", err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `posedb - pose run history

Usage: posedb <command> [options]

Commands:
  migrate [up|down|version|to N|force N]   Manage schema migrations
  runs [-limit N]                           List recorded runs, newest first
  export <run-id> <file.yml>                Write a run's poses as YAML
  delete <run-id>                           Remove a run and its poses
  serve [-listen addr]                      Serve the admin debug pages
  version                                   Show posedb version

Every command accepts -db <path> (default posebench.db).`)
}

func runCommand(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	command, rest := args[0], args[1:]
	switch command {
	case "migrate":
		return handleMigrate(rest, stdout)
	case "runs":
		return handleRuns(rest, stdout)
	case "export":
		return handleExport(rest, stdout)
	case "delete":
		return handleDelete(rest, stdout)
	case "serve":
		return handleServe(ctx, rest)
	case "version":
		fmt.Fprintln(stdout, version.String("posedb"))
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func openDB(fs *flag.FlagSet, args []string) (*db.DB, error) {
	dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return db.NewDB(*dbPath)
}

func handleMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	store, err := openDB(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	switch action {
	case "up":
		// NewDB already migrated up.
	case "down":
		err = store.MigrateDown()
	case "to", "force":
		if fs.NArg() < 2 {
			return fmt.Errorf("%w: migrate %s needs a version", errUsage, action)
		}
		v, perr := strconv.Atoi(fs.Arg(1))
		if perr != nil || v < 0 {
			return fmt.Errorf("invalid version %q", fs.Arg(1))
		}
		if action == "to" {
			err = store.MigrateTo(uint(v))
		} else {
			err = store.MigrateForce(v)
		}
	case "version":
	default:
		return fmt.Errorf("%w: unknown migrate action %q", errUsage, action)
	}
	if err != nil {
		return err
	}

	v, dirty, err := store.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty=%v)\n", v, dirty)
	return nil
}

func handleRuns(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum runs to list (0 for all)")
	store, err := openDB(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(*limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tDATASET\tDETECT\tSTARTED\tDURATION\tENTRIES\tIDENTITY")
	for _, r := range runs {
		duration := "running"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.Dataset, r.DetectType, r.StartedAt.Format(time.RFC3339), duration, r.Entries, r.Identity)
	}
	return tw.Flush()
}

func handleExport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	store, err := openDB(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	if fs.NArg() != 2 {
		return fmt.Errorf("%w: export <run-id> <file.yml>", errUsage)
	}
	runID, out := fs.Arg(0), fs.Arg(1)
	if err := security.ValidateOutputPath(out); err != nil {
		return err
	}
	res, err := store.LoadPoses(runID)
	if err != nil {
		return err
	}
	if err := results.WriteYAML(fsutil.OSFileSystem{}, out, res); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d entries to %s\n", res.Len(), out)
	return nil
}

func handleDelete(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	store, err := openDB(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: delete <run-id>", errUsage)
	}
	if err := store.DeleteRun(fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted run %s\n", fs.Arg(0))
	return nil
}

func handleServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", ":8080", "Listen address")
	store, err := openDB(fs, args)
	if err != nil {
		return err
	}
	defer store.Close()

	mux := http.NewServeMux()
	// Admin routes are reachable only in dev mode or over Tailscale.
	if err := store.AttachAdminRoutes(mux); err != nil {
		return err
	}
	server := &http.Server{
		Addr: *listen,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		}),
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving %s on %s", store.Path(), *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}
