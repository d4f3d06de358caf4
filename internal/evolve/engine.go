package evolve

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/genome"
)

// #region engine
// BatchEvaluator scores a generation. *evaluator.Evaluator satisfies it.
type BatchEvaluator interface {
	EvaluateAll(ctx context.Context, cs []genome.Chromosome, skip []bool) ([]evaluator.Result, error)
}

// Engine runs a generational genetic algorithm that minimizes fitness.
// It is not safe for concurrent use; parallelism lives inside the evaluator.
type Engine struct {
	cfg    Config
	layout genome.Layout
	eval   BatchEvaluator
	rng    *rand.Rand
	seed   uint64

	state    State
	pop      Population
	gen      int
	best     Individual
	stagnant int
	reason   string
}

// NewEngine validates cfg and seeds the engine's generator.
func NewEngine(cfg Config, layout genome.Layout, eval BatchEvaluator) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Engine{
		cfg:    cfg,
		layout: layout,
		eval:   eval,
		rng:    rand.New(rand.NewPCG(seed, seed)),
		seed:   seed,
		state:  Initialized,
	}, nil
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State { return e.state }

// Generation returns the index of the generation Step evaluates next, or the
// last one evaluated once the engine is done.
func (e *Engine) Generation() int { return e.gen }

// Seed returns the seed the generator was created with. A zero config seed
// is replaced by a drawn one, which Seed reports.
func (e *Engine) Seed() uint64 { return e.seed }

// Population returns the current generation. It is nil before Init.
func (e *Engine) Population() Population { return e.pop }

// Done reports whether a termination criterion has fired.
func (e *Engine) Done() bool { return e.state == Terminated }

// Reason names the criterion that ended the run, empty while running.
func (e *Engine) Reason() string { return e.reason }

// Best returns the best individual ever evaluated.
func (e *Engine) Best() (Individual, bool) {
	return e.best, e.best.Valid()
}

func (e *Engine) moveTo(next State) {
	if !e.state.canMoveTo(next) {
		panic(fmt.Sprintf("evolve: illegal transition %s -> %s", e.state, next))
	}
	e.state = next
}

// #endregion engine

// #region init
// Init builds generation 0: the max-diameter design when seeding is on,
// random chromosomes for the rest.
func (e *Engine) Init() {
	if e.state != Initialized || e.pop != nil {
		panic("evolve: Init called twice")
	}
	e.pop = make(Population, 0, e.cfg.PopulationSize)
	if e.cfg.SeedMaxDiameter {
		e.pop = append(e.pop, Individual{Genes: genome.MaxDiameter(e.layout)})
	}
	for len(e.pop) < e.cfg.PopulationSize {
		e.pop = append(e.pop, Individual{Genes: genome.Random(e.layout, e.rng)})
	}
}

// #endregion init

// #region step
// Step evaluates the current generation, updates Best-So-Far, checks the
// termination criteria and, unless they fire, breeds the next generation.
func (e *Engine) Step(ctx context.Context) (Snapshot, error) {
	if e.pop == nil {
		e.Init()
	}
	e.moveTo(Evaluating)

	genes := make([]genome.Chromosome, len(e.pop))
	skip := make([]bool, len(e.pop))
	evaluations := 0
	for i, ind := range e.pop {
		genes[i] = ind.Genes
		skip[i] = ind.Valid()
		if !skip[i] {
			evaluations++
		}
	}
	results, err := e.eval.EvaluateAll(ctx, genes, skip)
	if err != nil {
		return Snapshot{}, fmt.Errorf("generation %d: %w", e.gen, err)
	}
	for i := range e.pop {
		if !skip[i] {
			r := results[i]
			e.pop[i].Eval = &r
		}
	}

	snap := e.snapshot(evaluations)
	if snap.Improved {
		e.stagnant = 0
	} else {
		e.stagnant++
	}

	switch {
	case e.gen >= e.cfg.MaxGenerations:
		e.terminate("max_generations")
		return snap, nil
	case e.cfg.StagnationLimit > 0 && e.stagnant >= e.cfg.StagnationLimit:
		e.terminate("stagnation")
		return snap, nil
	}

	e.moveTo(Selecting)
	mates := e.selectMates()
	e.moveTo(Breeding)
	e.pop = e.breed(mates)
	e.gen++
	return snap, nil
}

// snapshot summarizes the evaluated generation and merges its best
// individual into Best-So-Far on strict improvement only.
func (e *Engine) snapshot(evaluations int) Snapshot {
	snap := Snapshot{
		Generation:  e.gen,
		Evaluations: evaluations,
		Fitness:     make([]float64, len(e.pop)),
	}
	genBest := 0
	for i, ind := range e.pop {
		snap.Fitness[i] = ind.Fitness()
		if ind.Eval.Feasible {
			snap.Feasible++
		}
		if ind.Eval.Outcome == evaluator.NonConverged {
			snap.NonConverged++
		}
		if ind.Fitness() < e.pop[genBest].Fitness() {
			genBest = i
		}
	}
	snap.GenerationBest = e.pop[genBest].Clone()

	if !e.best.Valid() || snap.GenerationBest.Fitness() < e.best.Fitness() {
		e.best = snap.GenerationBest.Clone()
		snap.Improved = true
	}
	snap.BestSoFar = e.best
	return snap
}

func (e *Engine) terminate(reason string) {
	e.moveTo(Terminated)
	e.reason = reason
	log.Printf("[EVOLVE] terminated at generation %d: %s (best fitness %.2f)", e.gen, reason, e.best.Fitness())
}

// #endregion step

// #region breed
// selectMates draws parents for every non-elite slot, rounded up to pairs.
func (e *Engine) selectMates() Population {
	n := e.cfg.PopulationSize - e.cfg.EliteCount
	n += n % 2
	mates := make(Population, n)
	for i := range mates {
		mates[i] = Tournament(e.pop, e.cfg.TournamentSize, e.rng)
	}
	return mates
}

// breed builds a new population: elites unchanged, then offspring of
// consecutive mate pairs. Offspring keep their parent's cached result only
// when neither crossover nor mutation touched them.
func (e *Engine) breed(mates Population) Population {
	next := Elites(e.pop, e.cfg.EliteCount)
	for i := 0; len(next) < e.cfg.PopulationSize; i += 2 {
		a, b := mates[i], mates[i+1]
		if e.rng.Float64() < e.cfg.CrossoverProb {
			a.Genes, b.Genes = TwoPointCrossover(a.Genes, b.Genes, e.rng)
			a.Eval, b.Eval = nil, nil
		}
		for _, child := range []*Individual{&a, &b} {
			if Mutate(child.Genes, e.layout, e.cfg.MutationProb, e.rng) {
				child.Eval = nil
			}
		}
		next = append(next, a)
		if len(next) < e.cfg.PopulationSize {
			next = append(next, b)
		}
	}
	return next
}

// #endregion breed
