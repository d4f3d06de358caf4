package hydraulic

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region surrogate
// Surrogate is a deterministic analytic stand-in for a real hydraulic engine.
// Pressure at a junction is K·(d/Reference)³/demand, where d is the smallest
// diameter among the junction's laid pipes; pipe flow is the larger demand of
// its two end nodes. Pressures rise and velocities fall monotonically with
// diameter, which is all the optimizer needs for testing and demos.
type Surrogate struct {
	K         float64 // head coefficient
	Reference float64 // mm, diameter normalisation
	MinDemand float64 // m³/s floor that keeps zero-demand junctions finite
}

// DefaultSurrogate returns coefficients that put typical municipal designs in
// the 10–100 m pressure range.
func DefaultSurrogate() Surrogate {
	return Surrogate{K: 0.5, Reference: 100, MinDemand: 1e-4}
}

// Simulate evaluates the analytic model. A junction with no laid pipe makes
// the system singular and is reported as non-convergence.
func (s Surrogate) Simulate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	ref := s.Reference
	if ref <= 0 {
		ref = 100
	}

	demand := make(map[string]float64, len(req.Nodes))
	minDiam := make(map[string]float64, len(req.Nodes))
	for _, n := range req.Nodes {
		demand[n.ID] = n.Demand
	}
	for _, p := range req.Pipes {
		for _, id := range []string{p.From, p.To} {
			if d, ok := minDiam[id]; !ok || p.Diameter < d {
				minDiam[id] = p.Diameter
			}
		}
	}

	res := Result{
		Pressures:  make(map[string]float64, len(req.Nodes)),
		Velocities: make(map[string]float64, len(req.Pipes)),
		Flows:      make(map[string]float64, len(req.Pipes)),
	}
	for _, n := range req.Nodes {
		if n.Kind == network.Reservoir {
			res.Pressures[n.ID] = 0
			continue
		}
		d, ok := minDiam[n.ID]
		if !ok {
			return Result{}, fmt.Errorf("%w: node %s has no laid pipe", ErrNonConvergence, n.ID)
		}
		q := math.Max(n.Demand, s.MinDemand)
		res.Pressures[n.ID] = s.K * math.Pow(d/ref, 3) / q
	}
	for _, p := range req.Pipes {
		q := math.Max(demand[p.From], demand[p.To])
		res.Flows[p.ID] = q
		res.Velocities[p.ID] = VelocityFromFlow(q, p.Diameter)
	}
	return res, nil
}

// #endregion surrogate
