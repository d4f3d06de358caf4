package constraint

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region policy
// Policy turns hydraulic results into feasibility verdicts and penalized
// fitness values. Lower fitness is better.
type Policy struct {
	Limits        Limits
	PenaltyWeight float64 // cost units per metre (or m/s) of violation
	ViolationCap  float64 // violation magnitude beyond which the penalty stops growing
	BaseCost      float64 // added to every infeasible fitness; set to the network's max cost
}

// NewPolicy validates and builds a policy.
func NewPolicy(limits Limits, weight, violationCap, baseCost float64) (Policy, error) {
	switch {
	case weight <= 0:
		return Policy{}, fmt.Errorf("%w: penalty weight %g must be positive", ErrInvalidPolicy, weight)
	case violationCap <= 0:
		return Policy{}, fmt.Errorf("%w: violation cap %g must be positive", ErrInvalidPolicy, violationCap)
	case baseCost < 0:
		return Policy{}, fmt.Errorf("%w: base cost %g is negative", ErrInvalidPolicy, baseCost)
	case limits.MaxVelocity <= 0:
		return Policy{}, fmt.Errorf("%w: max velocity %g must be positive", ErrInvalidPolicy, limits.MaxVelocity)
	case limits.MinPressure < 0:
		return Policy{}, fmt.Errorf("%w: min pressure %g is negative", ErrInvalidPolicy, limits.MinPressure)
	case limits.MaxPressure > 0 && limits.MaxPressure <= limits.MinPressure:
		return Policy{}, fmt.Errorf("%w: max pressure %g not above min pressure %g", ErrInvalidPolicy, limits.MaxPressure, limits.MinPressure)
	case limits.MinVelocity < 0 || limits.MinVelocity >= limits.MaxVelocity:
		return Policy{}, fmt.Errorf("%w: min velocity %g outside [0, %g)", ErrInvalidPolicy, limits.MinVelocity, limits.MaxVelocity)
	}
	return Policy{
		Limits:        limits,
		PenaltyWeight: weight,
		ViolationCap:  violationCap,
		BaseCost:      baseCost,
	}, nil
}

// ViolationBound is the default violation cap for net: ten times the
// violation of a design whose demand nodes all sit at zero pressure while
// every pipe runs at twice the velocity limit. Penalties stay strictly
// increasing over any violation a converged simulation produces in practice.
func ViolationBound(net *network.Network, limits Limits) float64 {
	var bound float64
	for _, n := range net.DemandNodes() {
		floor := limits.MinPressure
		if n.MinPressure > 0 {
			floor = n.MinPressure
		}
		bound += math.Max(floor, 1)
	}
	bound += float64(net.PipeCount()) * limits.MaxVelocity
	return 10 * math.Max(bound, 1)
}

// MinPressureFor returns the pressure floor of a node.
func (p Policy) MinPressureFor(n network.Node) float64 {
	if n.MinPressure > 0 {
		return n.MinPressure
	}
	return p.Limits.MinPressure
}

// #endregion policy

// #region assess
// Assess checks every demand node and every laid pipe of a simulated design.
// A node missing from the result is read as zero pressure.
func (p Policy) Assess(net *network.Network, a network.Assignment, res hydraulic.Result) Assessment {
	out := Assessment{MinPressure: math.Inf(1)}

	for _, n := range net.DemandNodes() {
		pr := res.Pressures[n.ID]
		out.MinPressure = math.Min(out.MinPressure, pr)
		if floor := p.MinPressureFor(n); pr < floor {
			out.add(PressureDeficit, n.ID, floor-pr)
		}
		if p.Limits.MaxPressure > 0 && pr > p.Limits.MaxPressure {
			out.add(PressureExcess, n.ID, pr-p.Limits.MaxPressure)
		}
	}
	if math.IsInf(out.MinPressure, 1) {
		out.MinPressure = 0
	}

	for _, d := range a.Pipes {
		if !d.Present {
			continue
		}
		v, _ := res.Velocity(d.PipeID, d.Diameter)
		out.MaxVelocity = math.Max(out.MaxVelocity, v)
		if v > p.Limits.MaxVelocity {
			out.add(VelocityExcess, d.PipeID, v-p.Limits.MaxVelocity)
		}
		if p.Limits.MinVelocity > 0 && v < p.Limits.MinVelocity {
			out.add(VelocityDeficit, d.PipeID, p.Limits.MinVelocity-v)
		}
	}

	out.Feasible = len(out.Violations) == 0
	return out
}

// Disconnected assesses a layout whose listed nodes have no path to a source.
// Each cut-off node counts as a pressure deficit of at least 1 m.
func (p Policy) Disconnected(net *network.Network, ids []string) Assessment {
	var out Assessment
	for _, id := range ids {
		amount := 1.0
		if n, ok := net.NodeByID(id); ok {
			amount = math.Max(p.MinPressureFor(n), 1)
		}
		out.add(Disconnected, id, amount)
	}
	out.Feasible = len(out.Violations) == 0
	return out
}

func (a *Assessment) add(kind Kind, element string, amount float64) {
	a.Violations = append(a.Violations, Violation{Kind: kind, Element: element, Amount: amount})
	a.Magnitude += amount
}

// #endregion assess

// #region fitness
// Fitness is the minimized objective. Feasible designs score their cost.
// Infeasible designs score cost + BaseCost + weight·min(magnitude, cap), so
// with BaseCost at the network's max cost no infeasible design ever beats a
// feasible one.
func (p Policy) Fitness(cost float64, a Assessment) float64 {
	if a.Feasible {
		return cost
	}
	return cost + p.BaseCost + p.PenaltyWeight*math.Min(a.Magnitude, p.ViolationCap)
}

// WorstFitness is assigned to designs the solver could not simulate.
// It is finite and no better than any simulated infeasible design.
func (p Policy) WorstFitness() float64 {
	return 2*p.BaseCost + p.PenaltyWeight*p.ViolationCap
}

// #endregion fitness
