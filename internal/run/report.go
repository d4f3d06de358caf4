package run

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// #region history-csv
var historyHeader = []string{
	"execution", "gen", "nevals", "avg", "std", "min", "max",
	"best_cost", "best_so_far", "feasible_rate", "non_converged",
}

// WriteHistoryCSV writes the convergence history, one row per generation.
func WriteHistoryCSV(w io.Writer, history []GenerationStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, g := range history {
		row := []string{
			strconv.Itoa(g.Execution),
			strconv.Itoa(g.Generation),
			strconv.Itoa(g.Evaluations),
			formatFloat(g.Mean),
			formatFloat(g.StdDev),
			formatFloat(g.Min),
			formatFloat(g.Max),
			formatFloat(g.BestCost),
			formatFloat(g.BestSoFar),
			formatFloat(g.FeasibleRate),
			strconv.Itoa(g.NonConverged),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write generation %d: %w", g.Generation, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// #endregion history-csv

// #region summary
// Summary renders the best design as a human-readable table.
func (r Report) Summary() string {
	var b strings.Builder
	if r.RunID != "" {
		fmt.Fprintf(&b, "run %s on %s\n", r.RunID, r.Network)
	} else {
		fmt.Fprintf(&b, "network %s\n", r.Network)
	}
	status := "feasible"
	if !r.Feasible {
		status = fmt.Sprintf("INFEASIBLE (violation %.3f)", r.Violation)
	}
	fmt.Fprintf(&b, "best cost %.2f, fitness %.2f, %s, %s\n", r.Cost, r.Fitness, status, r.Outcome)
	fmt.Fprintf(&b, "min pressure %.2f m, max velocity %.3f m/s\n", r.MinPressure, r.MaxVelocity)
	fmt.Fprintf(&b, "%d execution(s), %d generation(s), %d solver call(s), %s\n",
		r.Executions, r.Generations, r.SolverCalls, r.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "pipe\tdiameter\tunit cost\tcost")
	for _, p := range r.Best.Pipes {
		if !p.Present {
			fmt.Fprintf(tw, "%s\t-\t-\t0\n", p.PipeID)
			continue
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%.2f\n", p.PipeID, p.Diameter, p.UnitCost, p.Cost)
	}
	tw.Flush()

	for _, v := range r.Violations {
		fmt.Fprintf(&b, "violation: %s at %s by %.3f\n", v.Kind, v.Element, v.Amount)
	}
	return b.String()
}

// #endregion summary
