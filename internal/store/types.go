package store

import "time"

// #region run-status
// Status is the lifecycle state of a stored run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)
// #endregion run-status

// #region run-record
// RunMeta describes a run at creation time.
type RunMeta struct {
	Network    string
	ConfigJSON string
}

// RunRecord is a row of the runs table.
type RunRecord struct {
	RunID       string
	Network     string
	ConfigJSON  string
	Status      Status
	Reason      string
	BestFitness float64
	BestCost    float64
	Feasible    bool
	CreatedAt   time.Time
	FinishedAt  time.Time // zero while running
}

// RunOutcome is written when a run ends.
type RunOutcome struct {
	Status      Status
	Reason      string
	BestFitness float64
	BestCost    float64
	Feasible    bool
}
// #endregion run-record

// #region generation-record
// GenerationRecord is one convergence-history row.
type GenerationRecord struct {
	Execution    int
	Generation   int
	Evaluations  int
	BestCost     float64
	Mean         float64
	StdDev       float64
	Min          float64
	Max          float64
	FeasibleRate float64
	BestSoFar    float64
	NonConverged int
}
// #endregion generation-record

// #region best-record
// BestRecord is the persisted best design of a run.
type BestRecord struct {
	RunID          string
	Chromosome     string // genome key, e.g. "3.0.12"
	AssignmentJSON string
	ResultJSON     string
	CreatedAt      time.Time
}
// #endregion best-record
