package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/optinet/internal/config"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region export

// FromRun builds a fixture from a completed stored run. The store keeps only
// the network name, so the topology and catalog are supplied by the caller.
// Expectations are taken from the stored best design.
func FromRun(s *store.Store, runID string, net *network.Network, cat network.Catalog, solver hydraulic.Surrogate) (*Fixture, error) {
	rec, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if rec.Status != store.StatusCompleted {
		return nil, fmt.Errorf("run %s is %s, not completed", runID, rec.Status)
	}
	if rec.Network != net.Name {
		return nil, fmt.Errorf("run %s optimized %q, not %q", runID, rec.Network, net.Name)
	}

	cfg := config.Default()
	if rec.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("decode stored config: %w", err)
		}
	}

	best, err := s.BestDesign(runID)
	if err != nil {
		return nil, err
	}
	var a network.Assignment
	if err := json.Unmarshal([]byte(best.AssignmentJSON), &a); err != nil {
		return nil, fmt.Errorf("decode stored design: %w", err)
	}

	cost := a.TotalCost
	feasible := rec.Feasible
	return &Fixture{
		Description:      fmt.Sprintf("exported from run %s (%s)", rec.RunID, rec.CreatedAt.Format("2006-01-02")),
		Network:          FixtureNetwork{Name: net.Name, Nodes: net.Nodes, Pipes: net.Pipes},
		Catalog:          cat.Entries(),
		Solver:           FixtureSolver{K: solver.K, Reference: solver.Reference, MinDemand: solver.MinDemand},
		Config:           ConfigFromOptions(cfg),
		ExpectedCost:     &cost,
		ExpectedFeasible: &feasible,
		ExpectedIndices:  a.Indices(),
	}, nil
}

// #endregion export
