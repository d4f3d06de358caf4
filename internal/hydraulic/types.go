package hydraulic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region errors
// ErrNonConvergence is reported when the solver fails numerically. It marks a
// single design as worst-case; it is not a fault of the solver itself.
var ErrNonConvergence = errors.New("hydraulic solver did not converge")

// IsNonConvergence reports whether err is a non-convergence outcome.
func IsNonConvergence(err error) bool {
	return errors.Is(err, ErrNonConvergence)
}

// ErrIncompleteResult is reported when a solver answers without a reading the
// request needs. It is a fault of the solver, not of the design.
var ErrIncompleteResult = errors.New("hydraulic result incomplete")

// #endregion errors

// #region request
// NodeSpec is a node as handed to the solver.
type NodeSpec struct {
	ID        string           `json:"id"`
	Kind      network.NodeKind `json:"kind"`
	Demand    float64          `json:"demand"`
	Elevation float64          `json:"elevation"`
}

// PipeSpec is a laid pipe with its assigned diameter.
type PipeSpec struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Length    float64 `json:"length"`
	Roughness float64 `json:"roughness"`
	Diameter  float64 `json:"diameter"` // mm
}

// Request is one steady-state simulation of a candidate design.
type Request struct {
	Network string     `json:"network"`
	Nodes   []NodeSpec `json:"nodes"`
	Pipes   []PipeSpec `json:"pipes"`
}

// NewRequest builds a request for the laid pipes of an assignment.
func NewRequest(net *network.Network, a network.Assignment) Request {
	req := Request{
		Network: net.Name,
		Nodes:   make([]NodeSpec, len(net.Nodes)),
		Pipes:   make([]PipeSpec, 0, len(a.Pipes)),
	}
	for i, n := range net.Nodes {
		req.Nodes[i] = NodeSpec{ID: n.ID, Kind: n.Kind, Demand: n.Demand, Elevation: n.Elevation}
	}
	for i, d := range a.Pipes {
		if !d.Present {
			continue
		}
		p := net.Pipes[i]
		req.Pipes = append(req.Pipes, PipeSpec{
			ID:        p.ID,
			From:      p.From,
			To:        p.To,
			Length:    p.Length,
			Roughness: p.Roughness,
			Diameter:  d.Diameter,
		})
	}
	return req
}

// #endregion request

// #region result
// Result is the steady-state output of one simulation.
// Pressures are in metres of head, velocities in m/s, flows in m³/s.
type Result struct {
	Pressures  map[string]float64 `json:"pressures"`
	Velocities map[string]float64 `json:"velocities"`
	Flows      map[string]float64 `json:"flows"`
}

// Velocity returns the velocity of a pipe, deriving it from flow and diameter
// when the solver only reported flow.
func (r Result) Velocity(pipeID string, diameterMM float64) (float64, bool) {
	if v, ok := r.Velocities[pipeID]; ok {
		return math.Abs(v), true
	}
	q, ok := r.Flows[pipeID]
	if !ok || diameterMM <= 0 {
		return 0, false
	}
	return VelocityFromFlow(q, diameterMM), true
}

// Check rejects results the constraint checks cannot trust. A non-finite
// reading means the simulation blew up numerically and is reported as
// non-convergence. A laid pipe with neither velocity nor flow is reported as
// ErrIncompleteResult.
func (r Result) Check(req Request) error {
	for _, m := range []map[string]float64{r.Pressures, r.Velocities, r.Flows} {
		for id, v := range m {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s reported %g", ErrNonConvergence, id, v)
			}
		}
	}
	for _, p := range req.Pipes {
		if _, ok := r.Velocity(p.ID, p.Diameter); !ok {
			return fmt.Errorf("%w: no velocity or flow for pipe %s", ErrIncompleteResult, p.ID)
		}
	}
	return nil
}

// VelocityFromFlow converts a flow (m³/s) in a pipe of the given diameter (mm) to m/s.
func VelocityFromFlow(flow, diameterMM float64) float64 {
	d := diameterMM / 1000.0
	area := math.Pi * d * d / 4.0
	return math.Abs(flow) / area
}

// #endregion result

// #region solver
// Solver runs a steady-state hydraulic simulation. Implementations must not
// keep state between calls that would make results order-dependent.
type Solver interface {
	Simulate(ctx context.Context, req Request) (Result, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, req Request) (Result, error)

// Simulate calls f.
func (f SolverFunc) Simulate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// #endregion solver
