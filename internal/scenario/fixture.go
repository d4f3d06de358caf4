package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/optinet/internal/config"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a regression scenario.
type Fixture struct {
	Description      string                 `json:"description"`
	Network          FixtureNetwork         `json:"network"`
	Catalog          []network.CatalogEntry `json:"catalog"`
	Solver           FixtureSolver          `json:"solver"`
	Config           FixtureConfig          `json:"config"`
	ExpectedCost     *float64               `json:"expected_cost,omitempty"`
	ExpectedFeasible *bool                  `json:"expected_feasible,omitempty"`
	ExpectedIndices  []int                  `json:"expected_indices,omitempty"`
}

// FixtureNetwork mirrors network.File with JSON tags.
type FixtureNetwork struct {
	Name  string         `json:"name"`
	Nodes []network.Node `json:"nodes"`
	Pipes []network.Pipe `json:"pipes"`
}

// FixtureSolver holds the surrogate coefficients the scenario was recorded with.
type FixtureSolver struct {
	K         float64 `json:"k"`
	Reference float64 `json:"reference"`
	MinDemand float64 `json:"min_demand"`
}

// FixtureConfig mirrors the optimizer options that influence the outcome.
// Workers and timeouts are left at their defaults; they never change results.
type FixtureConfig struct {
	PopulationSize  int     `json:"population_size"`
	MaxGenerations  int     `json:"max_generations"`
	StagnationLimit int     `json:"stagnation_limit"`
	CrossoverProb   float64 `json:"crossover_prob"`
	MutationProb    float64 `json:"mutation_prob"`
	TournamentSize  int     `json:"tournament_size"`
	EliteCount      int     `json:"elite_count"`
	Seed            uint64  `json:"seed"`
	SeedMaxDiameter bool    `json:"seed_max_diameter"`
	MinPressure     float64 `json:"min_pressure"`
	MaxVelocity     float64 `json:"max_velocity"`
	MaxPressure     float64 `json:"max_pressure,omitempty"`
	MinVelocity     float64 `json:"min_velocity,omitempty"`
	PenaltyWeight   float64 `json:"penalty_weight"`
	ViolationCap    float64 `json:"violation_cap"`
	Executions      int     `json:"executions"`
	LayoutSearch    bool    `json:"layout_search"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Build converts the fixture into the inputs of a run.
func (f *Fixture) Build() (*network.Network, network.Catalog, config.Config, hydraulic.Solver, error) {
	net, err := network.NewNetwork(f.Network.Name, f.Network.Nodes, f.Network.Pipes)
	if err != nil {
		return nil, network.Catalog{}, config.Config{}, nil, fmt.Errorf("fixture network: %w", err)
	}
	cat, err := network.NewCatalog(f.Catalog)
	if err != nil {
		return nil, network.Catalog{}, config.Config{}, nil, fmt.Errorf("fixture catalog: %w", err)
	}
	cfg := f.Config.ToConfig()
	if err := cfg.Validate(); err != nil {
		return nil, network.Catalog{}, config.Config{}, nil, fmt.Errorf("fixture config: %w", err)
	}
	solver := hydraulic.Surrogate{K: f.Solver.K, Reference: f.Solver.Reference, MinDemand: f.Solver.MinDemand}
	return net, cat, cfg, solver, nil
}

// ToConfig overlays the fixture options on the defaults.
func (fc FixtureConfig) ToConfig() config.Config {
	cfg := config.Default()
	cfg.Optimizer.PopulationSize = fc.PopulationSize
	cfg.Optimizer.MaxGenerations = fc.MaxGenerations
	cfg.Optimizer.StagnationLimit = fc.StagnationLimit
	cfg.Optimizer.CrossoverProb = fc.CrossoverProb
	cfg.Optimizer.MutationProb = fc.MutationProb
	cfg.Optimizer.TournamentSize = fc.TournamentSize
	cfg.Optimizer.EliteCount = fc.EliteCount
	cfg.Optimizer.Seed = fc.Seed
	cfg.Optimizer.SeedMaxDiameter = fc.SeedMaxDiameter
	cfg.Limits.MinPressure = fc.MinPressure
	cfg.Limits.MaxVelocity = fc.MaxVelocity
	cfg.Limits.MaxPressure = fc.MaxPressure
	cfg.Limits.MinVelocity = fc.MinVelocity
	cfg.PenaltyWeight = fc.PenaltyWeight
	cfg.ViolationCap = fc.ViolationCap
	cfg.Executions = fc.Executions
	cfg.LayoutSearch = fc.LayoutSearch
	return cfg
}

// ConfigFromOptions is the inverse of ToConfig, used when exporting a stored run.
func ConfigFromOptions(cfg config.Config) FixtureConfig {
	return FixtureConfig{
		PopulationSize:  cfg.Optimizer.PopulationSize,
		MaxGenerations:  cfg.Optimizer.MaxGenerations,
		StagnationLimit: cfg.Optimizer.StagnationLimit,
		CrossoverProb:   cfg.Optimizer.CrossoverProb,
		MutationProb:    cfg.Optimizer.MutationProb,
		TournamentSize:  cfg.Optimizer.TournamentSize,
		EliteCount:      cfg.Optimizer.EliteCount,
		Seed:            cfg.Optimizer.Seed,
		SeedMaxDiameter: cfg.Optimizer.SeedMaxDiameter,
		MinPressure:     cfg.Limits.MinPressure,
		MaxVelocity:     cfg.Limits.MaxVelocity,
		MaxPressure:     cfg.Limits.MaxPressure,
		MinVelocity:     cfg.Limits.MinVelocity,
		PenaltyWeight:   cfg.PenaltyWeight,
		ViolationCap:    cfg.ViolationCap,
		Executions:      cfg.Executions,
		LayoutSearch:    cfg.LayoutSearch,
	}
}

// #endregion fixture-loader
