package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/scenario"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run store (DB mode)")
	runID := flag.String("run", "", "stored run to re-execute (DB mode)")
	netPath := flag.String("network", "", "network definition the run optimized (DB mode)")
	catPath := flag.String("catalog", "", "pipe catalog the run used (DB mode)")
	k := flag.Float64("k", hydraulic.DefaultSurrogate().K, "surrogate head coefficient (DB mode)")
	fixturePath := flag.String("fixture", "", "fixture JSON path or glob (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay -fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay -db runs.db -run id -network net.yaml -catalog prices.csv [-k coeff]")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		solver := hydraulic.DefaultSurrogate()
		solver.K = *k
		exitCode = runDBMode(*dbPath, *runID, *netPath, *catPath, solver)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

func runDBMode(dbPath, runID, netPath, catPath string, solver hydraulic.Surrogate) int {
	if runID == "" || netPath == "" || catPath == "" {
		fmt.Fprintln(os.Stderr, "DB mode needs -run, -network and -catalog")
		return 2
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer s.Close()

	net, err := network.LoadNetwork(netPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	cat, err := network.LoadCatalog(catPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	f, err := scenario.FromRun(s, runID, net, cat, solver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export run: %v\n", err)
		return 2
	}
	return replayOne(runID, f)
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(pattern string) int {
	paths, err := filepath.Glob(pattern)
	if err != nil || len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "no fixture matches %s\n", pattern)
		return 2
	}
	slices.Sort(paths)

	code := 0
	for _, p := range paths {
		f, err := scenario.LoadFixture(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		if c := replayOne(filepath.Base(p), f); c > code {
			code = c
		}
	}
	return code
}

// #endregion fixture-mode

// #region compare

// replayOne prints a comparison table and returns the exit code.
func replayOne(label string, f *scenario.Fixture) int {
	res, err := scenario.Replay(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay %s: %v\n", label, err)
		return 2
	}
	rep := res.Report

	fmt.Printf("== %s: %s\n", label, f.Description)
	fmt.Printf("%-10s| %-22s| %-22s\n", "Field", "Expected", "Replayed")
	fmt.Printf("%-10s+%-22s+%-22s\n", "----------", "-----------------------", "-----------------------")
	fmt.Printf("%-10s| %-22s| %-22s\n", "cost", fmtOpt(f.ExpectedCost), fmt.Sprintf("%g", rep.Cost))
	fmt.Printf("%-10s| %-22s| %-22s\n", "feasible", fmtOptBool(f.ExpectedFeasible), fmt.Sprintf("%t", rep.Feasible))
	fmt.Printf("%-10s| %-22s| %-22s\n", "indices", fmtIndices(f.ExpectedIndices), fmtIndices(rep.Best.Indices()))

	if !res.Passed() {
		fmt.Printf("\nDIVERGED (%d):\n", len(res.Mismatches))
		for _, m := range res.Mismatches {
			fmt.Printf("  %s\n", m)
		}
		return 1
	}
	fmt.Printf("\nOK (%d generations, %d solver calls)\n\n", rep.Generations, rep.SolverCalls)
	return 0
}

func fmtOpt(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%g", *v)
}

func fmtOptBool(v *bool) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%t", *v)
}

func fmtIndices(v []int) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprint(v)
}

// #endregion compare
