package scenario

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/optinet/internal/run"
)

// #region types

// costTolerance is relative; stored costs pass through JSON text.
const costTolerance = 1e-9

// Result captures the outcome of replaying one fixture.
type Result struct {
	Report     run.Report
	Mismatches []string
}

// Passed reports whether every recorded expectation held.
func (r Result) Passed() bool {
	return len(r.Mismatches) == 0
}

// #endregion types

// #region replay

// Replay runs the fixture's optimization in memory and compares the best
// design against the recorded expectations. Expectations left out of the
// fixture are not checked.
func Replay(ctx context.Context, f *Fixture) (Result, error) {
	net, cat, cfg, solver, err := f.Build()
	if err != nil {
		return Result{}, err
	}
	ctrl, err := run.New(cfg, net, cat, solver, run.Options{})
	if err != nil {
		return Result{}, err
	}
	rep, err := ctrl.Run(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("replay %s: %w", net.Name, err)
	}

	res := Result{Report: rep}
	if f.ExpectedCost != nil && !closeEnough(rep.Cost, *f.ExpectedCost) {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("cost: expected %g, got %g", *f.ExpectedCost, rep.Cost))
	}
	if f.ExpectedFeasible != nil && rep.Feasible != *f.ExpectedFeasible {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("feasible: expected %t, got %t", *f.ExpectedFeasible, rep.Feasible))
	}
	if f.ExpectedIndices != nil {
		got := rep.Best.Indices()
		if !slices.Equal(got, f.ExpectedIndices) {
			res.Mismatches = append(res.Mismatches, fmt.Sprintf("indices: expected %v, got %v", f.ExpectedIndices, got))
		}
	}
	return res, nil
}

func closeEnough(got, want float64) bool {
	return math.Abs(got-want) <= costTolerance*math.Max(1, math.Abs(want))
}

// #endregion replay
