package run

import (
	"time"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/genome"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region generation-stats
// GenerationStats is one row of the convergence history. The fitness
// columns follow the classic gen/nevals/avg/std/min/max log.
type GenerationStats struct {
	Execution    int     `json:"execution"`
	Generation   int     `json:"generation"`
	Evaluations  int     `json:"evaluations"`
	BestCost     float64 `json:"best_cost"` // cost of the generation's lowest-fitness individual
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	FeasibleRate float64 `json:"feasible_rate"`
	BestSoFar    float64 `json:"best_so_far"` // fitness
	NonConverged int     `json:"non_converged"`
}

func (g GenerationStats) record() store.GenerationRecord {
	return store.GenerationRecord{
		Execution:    g.Execution,
		Generation:   g.Generation,
		Evaluations:  g.Evaluations,
		BestCost:     g.BestCost,
		Mean:         g.Mean,
		StdDev:       g.StdDev,
		Min:          g.Min,
		Max:          g.Max,
		FeasibleRate: g.FeasibleRate,
		BestSoFar:    g.BestSoFar,
		NonConverged: g.NonConverged,
	}
}

// HistoryFromRecords converts stored rows back into history entries.
func HistoryFromRecords(rows []store.GenerationRecord) []GenerationStats {
	out := make([]GenerationStats, len(rows))
	for i, r := range rows {
		out[i] = GenerationStats{
			Execution:    r.Execution,
			Generation:   r.Generation,
			Evaluations:  r.Evaluations,
			BestCost:     r.BestCost,
			Mean:         r.Mean,
			StdDev:       r.StdDev,
			Min:          r.Min,
			Max:          r.Max,
			FeasibleRate: r.FeasibleRate,
			BestSoFar:    r.BestSoFar,
			NonConverged: r.NonConverged,
		}
	}
	return out
}

// #endregion generation-stats

// #region report
// Report is the outcome of a run. It is produced even when no feasible design
// was found; Feasible then reports false for the least-infeasible best.
type Report struct {
	RunID         string                 `json:"run_id,omitempty"`
	Network       string                 `json:"network"`
	Chromosome    genome.Chromosome      `json:"chromosome"`
	Best          network.Assignment     `json:"best"`
	Cost          float64                `json:"cost"`
	Fitness       float64                `json:"fitness"`
	Feasible      bool                   `json:"feasible"`
	Violation     float64                `json:"violation"`
	Outcome       evaluator.Outcome      `json:"outcome"`
	MinPressure   float64                `json:"min_pressure"`
	MaxVelocity   float64                `json:"max_velocity"`
	Violations    []constraint.Violation `json:"violations,omitempty"`
	History       []GenerationStats      `json:"history"`
	Executions    int                    `json:"executions"`
	BestExecution int                    `json:"best_execution"`
	Generations   int                    `json:"generations"` // evaluated, summed over executions
	Reasons       []string               `json:"reasons"`     // termination criterion per execution
	Seeds         []uint64               `json:"seeds"`
	SolverCalls   int64                  `json:"solver_calls"`
	Duration      time.Duration          `json:"duration"`
}

// #endregion report
