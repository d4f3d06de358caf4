package constraint

import "errors"

var ErrInvalidPolicy = errors.New("constraint: invalid policy")

// #region violation-kind
// Kind enumerates hydraulic constraint categories.
type Kind string

const (
	PressureDeficit Kind = "pressure_deficit"
	PressureExcess  Kind = "pressure_excess"
	VelocityExcess  Kind = "velocity_excess"
	VelocityDeficit Kind = "velocity_deficit"
	Disconnected    Kind = "disconnected"
)

// #endregion violation-kind

// #region violation
// Violation is one broken limit on one node or pipe.
type Violation struct {
	Kind    Kind    `json:"kind"`
	Element string  `json:"element"`
	Amount  float64 `json:"amount"` // m or m/s past the limit, always > 0
}

// #endregion violation

// #region limits
// Limits holds the hydraulic bounds a feasible design must respect.
type Limits struct {
	MinPressure float64 `yaml:"min_pressure" json:"min_pressure"` // m, used when a node sets none
	MaxVelocity float64 `yaml:"max_velocity" json:"max_velocity"` // m/s
	MaxPressure float64 `yaml:"max_pressure" json:"max_pressure"` // m, 0 disables
	MinVelocity float64 `yaml:"min_velocity" json:"min_velocity"` // m/s, 0 disables
}

// DefaultLimits returns common municipal design bounds.
func DefaultLimits() Limits {
	return Limits{
		MinPressure: 30,
		MaxVelocity: 2.0,
	}
}

// #endregion limits

// #region assessment
// Assessment is the constraint verdict for one simulated design.
type Assessment struct {
	Feasible    bool
	Magnitude   float64 // sum of violation amounts
	MinPressure float64 // lowest demand-node pressure
	MaxVelocity float64 // highest laid-pipe velocity
	Violations  []Violation
}

// #endregion assessment
