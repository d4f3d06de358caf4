package logging

import "time"

// #region event-kind
// Kinds of run events.
const (
	KindNonConvergence = "non_convergence"
	KindSolverFailure  = "solver_failure"
	KindTermination    = "termination"
	KindExecution      = "execution"
)
// #endregion event-kind

// #region event-entry
// EventEntry is a single row in the events table.
type EventEntry struct {
	RunID      string
	Generation int // -1 for run-level events
	Kind       string
	Detail     string
	CreatedAt  time.Time
}
// #endregion event-entry
