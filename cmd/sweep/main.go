// Command sweep evaluates traversal time over combinations of structure
// constants and writes one CSV row per combination.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/stairclimb/internal/config"
	"github.com/banshee-data/stairclimb/internal/db"
	"github.com/banshee-data/stairclimb/internal/runner"
	"github.com/banshee-data/stairclimb/internal/structure"
	"github.com/banshee-data/stairclimb/internal/version"
)

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseParamList parses a comma-separated list or a start:end:step range.
// An empty list yields def.
func parseParamList(list string, def float64) ([]float64, error) {
	if list == "" {
		return []float64{def}, nil
	}
	if !strings.Contains(list, ":") {
		return parseCSVFloatSlice(list)
	}
	parts := strings.Split(list, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid range %q, want start:end:step", list)
	}
	vals, err := parseCSVFloatSlice(strings.Join(parts, ","))
	if err != nil {
		return nil, err
	}
	return generateRange(vals[0], vals[1], vals[2])
}

func generateRange(start, end, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("range step must be positive, got %v", step)
	}
	var result []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > end+1e-9 {
			break
		}
		result = append(result, v)
	}
	return result, nil
}

// combinations expands the per-constant value lists into every structure.
func combinations(base structure.Dimensions, a, b, c, d, g []float64) []structure.Dimensions {
	var out []structure.Dimensions
	for _, av := range a {
		for _, bv := range b {
			for _, cv := range c {
				for _, dv := range d {
					for _, gv := range g {
						dims := base
						dims.A, dims.B, dims.C, dims.D, dims.G = av, bv, cv, dv, gv
						out = append(out, dims)
					}
				}
			}
		}
	}
	return out
}

var header = []string{"a", "b", "c", "d", "g", "status", "failure", "instructions", "elapsed_s", "run_id"}

type sweepResult struct {
	dims    structure.Dimensions
	elapsed float64
	ok      bool
}

// sweep plans every combination and writes a CSV row for each. store may be
// nil. It returns the fastest complete combination.
func sweep(cfg *config.Config, combos []structure.Dimensions, w io.Writer, store *db.DB, label string) (sweepResult, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return sweepResult{}, err
	}

	best := sweepResult{elapsed: math.Inf(1)}
	for _, dims := range combos {
		row := []string{ff(dims.A), ff(dims.B), ff(dims.C), ff(dims.D), ff(dims.G)}

		out, err := runner.Plan(cfg.WithDimensions(dims))
		if err != nil {
			// Geometry the structure cannot even start with.
			row = append(row, "invalid", "config", "0", "", "")
			if err := cw.Write(row); err != nil {
				return best, err
			}
			continue
		}

		status := string(db.RunComplete)
		if out.Err != nil {
			status = string(db.RunFailed)
		} else if e := out.Counter.Elapsed(); e < best.elapsed {
			best = sweepResult{dims: dims, elapsed: e, ok: true}
		}

		id := ""
		if store != nil {
			if id, err = store.RecordRun(out.Record(label)); err != nil {
				return best, err
			}
		}
		row = append(row, status, runner.Failure(out.Err),
			strconv.Itoa(out.Counter.Iterations()), ff(out.Counter.Elapsed()), id)
		if err := cw.Write(row); err != nil {
			return best, err
		}
	}
	cw.Flush()
	return best, cw.Error()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func main() {
	configFile := flag.String("config", "", "Base JSON config (defaults apply when empty)")
	aList := flag.String("a", "", "Values for A: comma-separated or start:end:step")
	bList := flag.String("b", "", "Values for B: comma-separated or start:end:step")
	cList := flag.String("c", "", "Values for C: comma-separated or start:end:step")
	dList := flag.String("d", "", "Values for D: comma-separated or start:end:step")
	gList := flag.String("g", "", "Values for G: comma-separated or start:end:step")
	output := flag.String("output", "", "Output CSV filename (stdout when empty)")
	dbFile := flag.String("db", "", "SQLite run store; every combination is stored when set")
	label := flag.String("label", "", "Run label (defaults to sweep-<timestamp>)")
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String("sweep"))
		return
	}

	cfg := config.EmptyConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	base := cfg.GetDimensions()

	var lists [5][]float64
	for i, p := range []struct {
		list string
		def  float64
	}{{*aList, base.A}, {*bList, base.B}, {*cList, base.C}, {*dList, base.D}, {*gList, base.G}} {
		vals, err := parseParamList(p.list, p.def)
		if err != nil {
			log.Fatalf("Invalid parameter list: %v", err)
		}
		lists[i] = vals
	}
	combos := combinations(base, lists[0], lists[1], lists[2], lists[3], lists[4])
	log.Printf("Sweeping %d combinations", len(combos))

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		w = f
	}

	var store *db.DB
	if *dbFile != "" {
		var err error
		if store, err = db.OpenDB(*dbFile); err != nil {
			log.Fatalf("Failed to open run store: %v", err)
		}
		defer store.Close()
	}
	if *label == "" {
		*label = "sweep-" + time.Now().UTC().Format("20060102T150405Z")
	}

	best, err := sweep(cfg, combos, w, store, *label)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	if !best.ok {
		log.Printf("Sweep complete: no combination finished the stair")
		return
	}
	d := best.dims
	log.Printf("Sweep complete: fastest a=%v b=%v c=%v d=%v g=%v in %.2fs", d.A, d.B, d.C, d.D, d.G, best.elapsed)
}
