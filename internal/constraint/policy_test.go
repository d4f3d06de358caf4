package constraint

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

func makeNetwork(t *testing.T) *network.Network {
	t.Helper()
	net, err := network.NewNetwork("tri",
		[]network.Node{
			{ID: "R", Kind: network.Reservoir, Elevation: 40},
			{ID: "A", Demand: 0.01, MinPressure: 20},
			{ID: "B", Demand: 0.02},
		},
		[]network.Pipe{
			{ID: "p1", From: "R", To: "A", Length: 100, Roughness: 130},
			{ID: "p2", From: "A", To: "B", Length: 200, Roughness: 130},
			{ID: "p3", From: "B", To: "R", Length: 300, Roughness: 130, Candidate: true},
		})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	return net
}

func makeCatalog(t *testing.T) network.Catalog {
	t.Helper()
	cat, err := network.NewCatalog([]network.CatalogEntry{
		{Diameter: 100, UnitCost: 10},
		{Diameter: 150, UnitCost: 15},
		{Diameter: 200, UnitCost: 22},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func makePolicy(t *testing.T, net *network.Network, cat network.Catalog) Policy {
	t.Helper()
	p, err := NewPolicy(Limits{MinPressure: 10, MaxVelocity: 2}, 1000, 100, cat.MaxCost(net))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func TestNewPolicyRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		limits Limits
		weight float64
		cap    float64
		base   float64
	}{
		{"zero weight", DefaultLimits(), 0, 10, 0},
		{"zero cap", DefaultLimits(), 1, 0, 0},
		{"negative base", DefaultLimits(), 1, 10, -1},
		{"zero max velocity", Limits{MinPressure: 10}, 1, 10, 0},
		{"pressure band inverted", Limits{MinPressure: 30, MaxPressure: 20, MaxVelocity: 2}, 1, 10, 0},
		{"velocity band inverted", Limits{MaxVelocity: 1, MinVelocity: 1.5}, 1, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolicy(tc.limits, tc.weight, tc.cap, tc.base)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestAssessFeasible(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p := makePolicy(t, net, cat)
	a := network.Decode(net, cat, []int{2, 2, 2}, nil)
	res := hydraulic.Result{
		Pressures:  map[string]float64{"R": 0, "A": 25, "B": 10},
		Velocities: map[string]float64{"p1": 1.9, "p2": 0.5, "p3": 2.0},
	}

	got := p.Assess(net, a, res)
	if !got.Feasible {
		t.Fatalf("expected feasible, got violations %+v", got.Violations)
	}
	if got.MinPressure != 10 || got.MaxVelocity != 2.0 {
		t.Fatalf("unexpected extremes: min p %g, max v %g", got.MinPressure, got.MaxVelocity)
	}
	if f := p.Fitness(a.TotalCost, got); f != a.TotalCost {
		t.Fatalf("feasible fitness should equal cost %g, got %g", a.TotalCost, f)
	}
}

func TestAssessViolations(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p := makePolicy(t, net, cat)
	a := network.Decode(net, cat, []int{0, 0, 0}, nil)
	res := hydraulic.Result{
		// A uses its own 20 m floor, B the 10 m default; R is never checked
		Pressures:  map[string]float64{"R": -50, "A": 15, "B": 4},
		Velocities: map[string]float64{"p1": 2.5, "p2": 1, "p3": 1},
	}

	got := p.Assess(net, a, res)
	if got.Feasible {
		t.Fatal("expected infeasible")
	}
	if len(got.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %+v", got.Violations)
	}
	if got.Violations[0].Kind != PressureDeficit || got.Violations[0].Element != "A" {
		t.Fatalf("first violation: %+v", got.Violations[0])
	}
	if got.Violations[2].Kind != VelocityExcess || got.Violations[2].Element != "p1" {
		t.Fatalf("last violation: %+v", got.Violations[2])
	}
	if want := 5.0 + 6.0 + 0.5; got.Magnitude != want {
		t.Fatalf("magnitude: want %g, got %g", want, got.Magnitude)
	}
}

func TestAssessOptionalLimits(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p, err := NewPolicy(Limits{MinPressure: 10, MaxPressure: 60, MaxVelocity: 2, MinVelocity: 0.2}, 1, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	// p3 absent: its zero velocity must not count as a deficit
	a := network.Decode(net, cat, []int{1, 1, 1}, []bool{true, true, false})
	res := hydraulic.Result{
		Pressures:  map[string]float64{"A": 70, "B": 30},
		Velocities: map[string]float64{"p1": 0.1, "p2": 1},
	}

	got := p.Assess(net, a, res)
	if len(got.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", got.Violations)
	}
	if got.Violations[0].Kind != PressureExcess || got.Violations[1].Kind != VelocityDeficit {
		t.Fatalf("unexpected kinds: %+v", got.Violations)
	}
}

func TestDisconnectedAssessment(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p := makePolicy(t, net, cat)

	got := p.Disconnected(net, []string{"A", "B"})
	if got.Feasible {
		t.Fatal("disconnected layout cannot be feasible")
	}
	if got.Magnitude != 30 {
		t.Fatalf("expected 20+10 deficit, got %g", got.Magnitude)
	}

	zero, _ := NewPolicy(Limits{MaxVelocity: 1}, 1, 10, 0)
	if z := zero.Disconnected(net, []string{"B"}); z.Magnitude != 1 {
		t.Fatalf("deficit floor should be 1 m, got %g", z.Magnitude)
	}
}

func TestFitnessPenaltyGrowsThenCaps(t *testing.T) {
	p := Policy{PenaltyWeight: 10, ViolationCap: 5, BaseCost: 1000}
	prev := 0.0
	for _, m := range []float64{0.5, 1, 2, 4.9} {
		f := p.Fitness(100, Assessment{Magnitude: m})
		if f <= prev {
			t.Fatalf("penalty not increasing at magnitude %g: %g <= %g", m, f, prev)
		}
		prev = f
	}
	if p.Fitness(100, Assessment{Magnitude: 5}) != p.Fitness(100, Assessment{Magnitude: 50}) {
		t.Fatal("penalty should stop growing at the cap")
	}
	if w := p.WorstFitness(); w < p.Fitness(1000, Assessment{Magnitude: 50}) {
		t.Fatalf("worst fitness %g below a simulated infeasible design", w)
	}
}

func TestViolationBound(t *testing.T) {
	net := makeNetwork(t)
	// A floors at 20, B at the 10 m default, three pipes at 2 m/s
	if got := ViolationBound(net, Limits{MinPressure: 10, MaxVelocity: 2}); got != 360 {
		t.Fatalf("expected 10*(20+10+3*2) = 360, got %g", got)
	}
	// floors below 1 m still count 1 m
	if got := ViolationBound(net, Limits{MaxVelocity: 1}); got != 10*(20+1+3) {
		t.Fatalf("expected %d, got %g", 10*(20+1+3), got)
	}
}

// Every feasible design must outrank every infeasible one.
func TestPenaltyDominance(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p := makePolicy(t, net, cat)
	solver := hydraulic.Surrogate{K: 0.2, Reference: 100, MinDemand: 1e-4}

	worstFeasible, bestInfeasible := -1.0, p.WorstFitness()+1
	var feasible, infeasible int
	for i := 0; i < 27; i++ {
		a := network.Decode(net, cat, []int{i % 3, (i / 3) % 3, i / 9}, nil)
		res, err := solver.Simulate(context.Background(), hydraulic.NewRequest(net, a))
		if err != nil {
			t.Fatalf("simulate %d: %v", i, err)
		}
		as := p.Assess(net, a, res)
		f := p.Fitness(a.TotalCost, as)
		if as.Feasible {
			feasible++
			worstFeasible = max(worstFeasible, f)
		} else {
			infeasible++
			bestInfeasible = min(bestInfeasible, f)
		}
	}
	if feasible == 0 || infeasible == 0 {
		t.Fatalf("fixture should mix outcomes: %d feasible, %d infeasible", feasible, infeasible)
	}
	if worstFeasible >= bestInfeasible {
		t.Fatalf("dominance broken: worst feasible %g >= best infeasible %g", worstFeasible, bestInfeasible)
	}
}

// With a solver whose pressures rise and velocities fall with diameter,
// enlarging a feasible design keeps it feasible.
func TestFeasibilityMonotone(t *testing.T) {
	net, cat := makeNetwork(t), makeCatalog(t)
	p := makePolicy(t, net, cat)
	solver := hydraulic.Surrogate{K: 0.2, Reference: 100, MinDemand: 1e-4}

	feasible := func(idx []int) bool {
		a := network.Decode(net, cat, idx, nil)
		res, err := solver.Simulate(context.Background(), hydraulic.NewRequest(net, a))
		if err != nil {
			t.Fatalf("simulate %v: %v", idx, err)
		}
		return p.Assess(net, a, res).Feasible
	}

	for i := 0; i < 27; i++ {
		idx := []int{i % 3, (i / 3) % 3, i / 9}
		if !feasible(idx) {
			continue
		}
		for g := range idx {
			if idx[g] == 2 {
				continue
			}
			up := append([]int(nil), idx...)
			up[g]++
			if !feasible(up) {
				t.Fatalf("%v feasible but larger %v is not", idx, up)
			}
		}
	}
}
