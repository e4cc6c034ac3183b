package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lensworks/raybench/internal/scenario"
	"github.com/lensworks/raybench/optics"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a bench scenario JSON file")
	parallel := flag.Int("parallel", 0, "worker count for the trace (values above 1 run in parallel)")
	outPath := flag.String("o", "", "write results as JSON to this file instead of printing a table")
	verbose := flag.Bool("verbose", false, "print the filled bench layout and every trace step")

	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: raytrace -scenario bench.json [-parallel N] [-o results.json] [-verbose]")
		os.Exit(2)
	}

	// ==== Load + fill ====

	f, err := os.Open(*scenarioPath)
	if err != nil {
		panic(fmt.Errorf("failed to open scenario %q: %w", *scenarioPath, err))
	}
	sys, summary, err := scenario.LoadBench(f)
	f.Close()
	if err != nil {
		panic(fmt.Errorf("failed to load scenario: %w", err))
	}

	fmt.Printf("Loaded bench %q: source z=%g, screen z=%g, %d elements, %d operators\n",
		summary.Label, summary.SourceZ, summary.ScreenZ, len(summary.Elements), summary.Operators)
	if *verbose {
		fmt.Println(sys)
	}

	// ==== Trace ====

	start := time.Now()
	var traces []*optics.RayTrace
	if *parallel > 1 {
		traces, err = sys.TraceParallel(*parallel)
	} else {
		traces, err = sys.Trace()
	}
	if err != nil {
		panic(fmt.Errorf("trace failed: %w", err))
	}
	elapsed := time.Since(start)

	mode := "sequential"
	if *parallel > 1 {
		mode = fmt.Sprintf("parallel/%d", *parallel)
	}
	fmt.Printf("Traced %d rays through %d operators in %s (%s)\n",
		len(traces), summary.Operators, elapsed.Round(time.Microsecond), mode)

	if *outPath != "" {
		if err := writeResults(*outPath, summary, mode, elapsed, traces); err != nil {
			panic(fmt.Errorf("failed to write results: %w", err))
		}
		fmt.Printf("Wrote %d traces to %s\n", len(traces), *outPath)
		return
	}

	for _, rt := range traces {
		seed, hit := rt.First(), rt.Last()
		fmt.Printf("%-5s seed x=%8.4f angle=%7.3f° z=%-8g  screen x=%8.4f angle=%7.3f° z=%g\n",
			rt.Label(), seed.X, seed.AngleDeg(), seed.Z, hit.X, hit.AngleDeg(), hit.Z)
		if *verbose {
			for _, pt := range rt.Rays()[1:] {
				fmt.Printf("↳ %-20s x=%8.4f angle=%7.3f° z=%g\n",
					pt.Label, pt.X, pt.AngleDeg(), pt.Z)
			}
		}
	}
}

// The file shapes written by -o. These stay local to main; the HTTP
// API has its own response types.
type resultJSON struct {
	Bench      string      `json:"bench"`
	Mode       string      `json:"mode"`
	DurationUS int64       `json:"duration_us"`
	Traces     []traceJSON `json:"traces"`
}

type traceJSON struct {
	Label  string      `json:"label"`
	Points []pointJSON `json:"points"`
}

type pointJSON struct {
	X     float64 `json:"x"`
	Angle float64 `json:"angle"`
	Z     float64 `json:"z"`
	Label string  `json:"label,omitempty"`
}

func writeResults(path string, summary *scenario.Summary, mode string, elapsed time.Duration, traces []*optics.RayTrace) error {
	out := resultJSON{
		Bench:      summary.Label,
		Mode:       mode,
		DurationUS: elapsed.Microseconds(),
		Traces:     make([]traceJSON, 0, len(traces)),
	}
	for _, rt := range traces {
		tj := traceJSON{Label: rt.Label(), Points: make([]pointJSON, 0, rt.Len())}
		for _, pt := range rt.Rays() {
			tj.Points = append(tj.Points, pointJSON{X: pt.X, Angle: pt.Angle, Z: pt.Z, Label: pt.Label})
		}
		out.Traces = append(out.Traces, tj)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
