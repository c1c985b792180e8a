// Command stairclimb plans a staircase traversal for a configured structure,
// prints the instruction sequence and its duration, and optionally stores the
// run, renders PNG frames and writes an HTML timing chart.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/stairclimb/internal/config"
	"github.com/banshee-data/stairclimb/internal/db"
	"github.com/banshee-data/stairclimb/internal/monitoring"
	"github.com/banshee-data/stairclimb/internal/render"
	"github.com/banshee-data/stairclimb/internal/runner"
	"github.com/banshee-data/stairclimb/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON config (defaults to "+config.DefaultConfigPath+" when present)")
	dbFile      = flag.String("db", "", "SQLite run store; empty disables storing")
	label       = flag.String("label", "", "Label stored with the run")
	plotDir     = flag.String("plot", "", "Directory for PNG frames; empty disables rendering")
	plotEvery   = flag.Int("plot-every", 1, "Keep every nth replay frame")
	chartFile   = flag.String("chart", "", "HTML timing chart output; empty disables the chart")
	verbose     = flag.Bool("v", false, "Log planner decisions")
	versionFlag = flag.Bool("version", false, "Print version information and exit")
)

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadConfig(config.DefaultConfigPath)
	}
	return config.EmptyConfig(), nil
}

func printPlan(w io.Writer, out *runner.Outcome) {
	per := out.Counter.Durations(false)
	for i, in := range out.Instructions() {
		fmt.Fprintf(w, "%3d  %-72s %7.2fs\n", i+1, in, per[i])
	}
	fmt.Fprintf(w, "%d instructions, %.2fs\n", out.Counter.Iterations(), out.Counter.Elapsed())
}

func run(cfg *config.Config, stdout io.Writer) error {
	out, err := runner.Plan(cfg)
	if err != nil {
		return err
	}
	printPlan(stdout, out)

	if *plotDir != "" {
		if err := render.EnsureDir(*plotDir); err != nil {
			return err
		}
		fw := &render.FrameWriter{Dir: *plotDir, Stair: out.Initial.Stair(), Every: *plotEvery}
		if err := out.Verify(cfg.GetReplaySteps(), fw.Observe); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		log.Printf("wrote %d frames to %s", len(fw.Files), *plotDir)
	} else if err := out.Verify(cfg.GetReplaySteps(), nil); err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if *chartFile != "" {
		if err := writeChart(*chartFile, out); err != nil {
			return err
		}
		log.Printf("wrote timing chart to %s", *chartFile)
	}

	if *dbFile != "" {
		store, err := db.OpenDB(*dbFile)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.RecordRun(out.Record(*label))
		if err != nil {
			return err
		}
		log.Printf("stored run %s", id)
	}

	if out.Err != nil {
		return fmt.Errorf("planning failed (%s): %w", runner.Failure(out.Err), out.Err)
	}
	return nil
}

func writeChart(path string, out *runner.Outcome) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := render.EnsureDir(dir); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	defer f.Close()
	return render.Timeline(f, "stairclimb", out.Instructions(), out.Counter)
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("stairclimb"))
		return
	}
	if *verbose {
		monitoring.SetDebugLogger(log.Printf)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := run(cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
