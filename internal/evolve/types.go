package evolve

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/genome"
)

var ErrInvalidConfig = errors.New("evolve: invalid configuration")

// #region state
// State is the engine's position in the generation cycle.
type State string

const (
	Initialized State = "INITIALIZED"
	Evaluating  State = "EVALUATING"
	Selecting   State = "SELECTING"
	Breeding    State = "BREEDING"
	Terminated  State = "TERMINATED"
)

var transitions = map[State][]State{
	Initialized: {Evaluating},
	Evaluating:  {Selecting, Terminated},
	Selecting:   {Breeding},
	Breeding:    {Evaluating},
}

func (s State) canMoveTo(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// #endregion state

// #region individual
// Individual is a chromosome with its cached evaluation. Eval is nil until
// the chromosome is evaluated and is cleared whenever the genes change.
type Individual struct {
	Genes genome.Chromosome
	Eval  *evaluator.Result
}

// Valid reports whether the cached evaluation is current.
func (ind Individual) Valid() bool {
	return ind.Eval != nil
}

// Fitness returns the cached fitness. It panics on an unevaluated individual.
func (ind Individual) Fitness() float64 {
	if ind.Eval == nil {
		panic("evolve: fitness of unevaluated individual")
	}
	return ind.Eval.Fitness
}

// Clone copies the genes. The cached result is shared read-only.
func (ind Individual) Clone() Individual {
	return Individual{Genes: genome.Clone(ind.Genes), Eval: ind.Eval}
}

// Population is an ordered, fixed-size set of individuals.
type Population []Individual

// #endregion individual

// #region config
// Config holds the evolutionary parameters.
type Config struct {
	PopulationSize  int     `yaml:"population_size" json:"population_size"`
	MaxGenerations  int     `yaml:"max_generations" json:"max_generations"`   // generations bred after generation 0
	StagnationLimit int     `yaml:"stagnation_limit" json:"stagnation_limit"` // 0 disables
	CrossoverProb   float64 `yaml:"crossover_prob" json:"crossover_prob"`
	MutationProb    float64 `yaml:"mutation_prob" json:"mutation_prob"` // per gene
	TournamentSize  int     `yaml:"tournament_size" json:"tournament_size"`
	EliteCount      int     `yaml:"elite_count" json:"elite_count"`
	Seed            uint64  `yaml:"seed" json:"seed"` // 0 draws a random seed
	SeedMaxDiameter bool    `yaml:"seed_max_diameter" json:"seed_max_diameter"`
}

// DefaultConfig returns a configuration suited to networks of tens of pipes.
func DefaultConfig() Config {
	return Config{
		PopulationSize:  100,
		MaxGenerations:  200,
		StagnationLimit: 50,
		CrossoverProb:   0.9,
		MutationProb:    0.05,
		TournamentSize:  3,
		EliteCount:      2,
		SeedMaxDiameter: true,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.PopulationSize < 2 {
		errs = append(errs, fmt.Errorf("%w: population_size %d must be at least 2", ErrInvalidConfig, c.PopulationSize))
	}
	if c.MaxGenerations < 1 {
		errs = append(errs, fmt.Errorf("%w: max_generations %d must be positive", ErrInvalidConfig, c.MaxGenerations))
	}
	if c.StagnationLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: stagnation_limit %d is negative", ErrInvalidConfig, c.StagnationLimit))
	}
	if c.CrossoverProb < 0 || c.CrossoverProb > 1 {
		errs = append(errs, fmt.Errorf("%w: crossover_prob %g outside [0,1]", ErrInvalidConfig, c.CrossoverProb))
	}
	if c.MutationProb < 0 || c.MutationProb > 1 {
		errs = append(errs, fmt.Errorf("%w: mutation_prob %g outside [0,1]", ErrInvalidConfig, c.MutationProb))
	}
	if c.TournamentSize < 1 {
		errs = append(errs, fmt.Errorf("%w: tournament_size %d must be at least 1", ErrInvalidConfig, c.TournamentSize))
	}
	if c.EliteCount < 0 || c.EliteCount >= c.PopulationSize {
		errs = append(errs, fmt.Errorf("%w: elite_count %d outside [0,%d)", ErrInvalidConfig, c.EliteCount, c.PopulationSize))
	}
	return errors.Join(errs...)
}

// #endregion config

// #region snapshot
// Snapshot describes one evaluated generation.
type Snapshot struct {
	Generation     int
	Evaluations    int // chromosomes actually evaluated this generation
	Fitness        []float64
	Feasible       int
	NonConverged   int
	GenerationBest Individual
	BestSoFar      Individual
	Improved       bool
}

// #endregion snapshot
