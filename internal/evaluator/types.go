package evaluator

import (
	"errors"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/genome"
	"github.com/danielpatrickdp/optinet/internal/metrics"
)

var ErrSpaceTooLarge = errors.New("evaluator: design space too large to enumerate")

// #region outcome
// Outcome classifies how an evaluation ended.
type Outcome string

const (
	Converged    Outcome = "converged"
	NonConverged Outcome = "non_converged"
	Disconnected Outcome = "disconnected" // layout leaves demand nodes unfed; solver not called
)

// #endregion outcome

// #region result
// Result is the evaluation of one chromosome. Fitness is minimized.
type Result struct {
	Outcome     Outcome                `json:"outcome"`
	MinPressure float64                `json:"min_pressure"`
	MaxVelocity float64                `json:"max_velocity"`
	Cost        float64                `json:"cost"`
	Feasible    bool                   `json:"feasible"`
	Violation   float64                `json:"violation"`
	Fitness     float64                `json:"fitness"`
	Violations  []constraint.Violation `json:"violations,omitempty"`
}

// #endregion result

// #region options
// EventSink receives per-occurrence notices the run wants persisted.
type EventSink interface {
	NonConvergence(c genome.Chromosome, err error)
}

// Options tunes an Evaluator.
type Options struct {
	Workers   int // concurrent simulations, < 1 means 1
	CacheSize int // memoized results, 0 disables
	Metrics   *metrics.Metrics
	Events    EventSink
}

// #endregion options

// #region oracle
// Oracle is the outcome of an exhaustive search.
type Oracle struct {
	Best      genome.Chromosome
	Result    Result
	Evaluated int
	Feasible  int
}

// #endregion oracle
