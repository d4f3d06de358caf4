package evolve

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/genome"
)

// #region helpers
var testLayout = genome.Layout{Pipes: 8, CatalogSize: 5}

// sumEval scores a chromosome by the sum of its genes.
type sumEval struct {
	evaluated int
	constant  bool
}

func (s *sumEval) EvaluateAll(_ context.Context, cs []genome.Chromosome, skip []bool) ([]evaluator.Result, error) {
	out := make([]evaluator.Result, len(cs))
	for i, c := range cs {
		if skip[i] {
			continue
		}
		s.evaluated++
		sum := 0.0
		for _, g := range c {
			sum += float64(g)
		}
		if s.constant {
			sum = 7
		}
		out[i] = evaluator.Result{Outcome: evaluator.Converged, Feasible: true, Cost: sum, Fitness: sum}
	}
	return out, nil
}

func individual(fitness float64, genes ...int) Individual {
	return Individual{Genes: genes, Eval: &evaluator.Result{Fitness: fitness}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 20
	cfg.MaxGenerations = 30
	cfg.StagnationLimit = 0
	cfg.Seed = 42
	cfg.SeedMaxDiameter = false
	return cfg
}

func runToEnd(t *testing.T, e *Engine) []Snapshot {
	t.Helper()
	var snaps []Snapshot
	for !e.Done() {
		s, err := e.Step(context.Background())
		require.NoError(t, err)
		snaps = append(snaps, s)
	}
	return snaps
}

// #endregion helpers

// #region config-tests
func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PopulationSize = 1
	bad.CrossoverProb = 1.5
	bad.MutationProb = -0.1
	bad.TournamentSize = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	for _, field := range []string{"population_size", "crossover_prob", "mutation_prob", "tournament_size", "elite_count"} {
		assert.ErrorContains(t, err, field)
	}

	_, err = NewEngine(bad, testLayout, &sumEval{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// #endregion config-tests

// #region operator-tests
func TestTournament_ReturnsCopy(t *testing.T) {
	pop := Population{individual(3, 1, 1), individual(1, 0, 0), individual(2, 2, 2)}
	rng := rand.New(rand.NewPCG(1, 1))

	// with k far above the population size the best is all but certain to be drawn
	w := Tournament(pop, 64, rng)
	assert.Equal(t, 1.0, w.Fitness())
	w.Genes[0] = 9
	assert.Equal(t, 0, pop[1].Genes[0])
}

func TestTournament_SingleDrawIsUniform(t *testing.T) {
	pop := Population{individual(3, 0), individual(1, 1), individual(2, 2)}
	rng := rand.New(rand.NewPCG(7, 7))
	seen := map[int]int{}
	for i := 0; i < 600; i++ {
		seen[Tournament(pop, 1, rng).Genes[0]]++
	}
	for g := 0; g < 3; g++ {
		assert.Greater(t, seen[g], 100, "gene %d drawn %d times", g, seen[g])
	}
}

func TestElites_SortedAndStable(t *testing.T) {
	pop := Population{individual(5, 0), individual(1, 1), individual(3, 2), individual(1, 3)}
	el := Elites(pop, 3)
	require.Len(t, el, 3)
	assert.Equal(t, []int{1, 3, 2}, []int{el[0].Genes[0], el[1].Genes[0], el[2].Genes[0]})
	assert.Nil(t, Elites(pop, 0))
	assert.Len(t, Elites(pop, 10), 4)
}

func TestTwoPointCrossover_SwapsOneRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	a := genome.Chromosome{0, 0, 0, 0, 0, 0}
	b := genome.Chromosome{1, 1, 1, 1, 1, 1}
	for trial := 0; trial < 100; trial++ {
		ca, cb := TwoPointCrossover(a, b, rng)
		assert.Equal(t, genome.Chromosome{0, 0, 0, 0, 0, 0}, a)
		assert.Equal(t, genome.Chromosome{1, 1, 1, 1, 1, 1}, b)

		swapped, runs := 0, 0
		for i := range ca {
			assert.Equal(t, 1, ca[i]+cb[i], "position %d lost a gene", i)
			if ca[i] == 1 {
				swapped++
				if i == 0 || ca[i-1] == 0 {
					runs++
				}
			}
		}
		assert.Positive(t, swapped)
		assert.Equal(t, 1, runs, "offspring %v should hold one contiguous range", ca)
	}
}

func TestMutate_RespectsBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	l := genome.Layout{Pipes: 4, CatalogSize: 3, Candidates: []int{0, 2}}

	c := genome.Chromosome{1, 1, 1, 1, 1, 0}
	assert.False(t, Mutate(c, l, 0, rng))
	assert.Equal(t, genome.Chromosome{1, 1, 1, 1, 1, 0}, c)

	for trial := 0; trial < 200; trial++ {
		Mutate(c, l, 1, rng)
		for i, g := range c {
			assert.GreaterOrEqual(t, g, 0)
			assert.LessOrEqual(t, g, l.Upper(i))
		}
	}
}

// #endregion operator-tests

// #region engine-tests
func TestEngine_BestSoFarNeverWorsens(t *testing.T) {
	e, err := NewEngine(testConfig(), testLayout, &sumEval{})
	require.NoError(t, err)
	snaps := runToEnd(t, e)

	require.Len(t, snaps, 31)
	for i := 1; i < len(snaps); i++ {
		prev, cur := snaps[i-1].BestSoFar.Fitness(), snaps[i].BestSoFar.Fitness()
		assert.LessOrEqual(t, cur, prev, "generation %d", i)
		assert.Equal(t, cur < prev, snaps[i].Improved, "generation %d", i)
		assert.LessOrEqual(t, cur, snaps[i].GenerationBest.Fitness())
	}
	best, ok := e.Best()
	require.True(t, ok)
	assert.Equal(t, snaps[len(snaps)-1].BestSoFar.Fitness(), best.Fitness())
	assert.Equal(t, "max_generations", e.Reason())
	assert.Equal(t, Terminated, e.State())
}

func TestEngine_Deterministic(t *testing.T) {
	run := func() []Snapshot {
		e, err := NewEngine(testConfig(), testLayout, &sumEval{})
		require.NoError(t, err)
		return runToEnd(t, e)
	}
	assert.Equal(t, run(), run())
}

func TestEngine_StagnationStopsEarly(t *testing.T) {
	cfg := testConfig()
	cfg.StagnationLimit = 3
	e, err := NewEngine(cfg, testLayout, &sumEval{constant: true})
	require.NoError(t, err)

	snaps := runToEnd(t, e)
	assert.Len(t, snaps, 4)
	assert.Equal(t, "stagnation", e.Reason())
	assert.True(t, snaps[0].Improved)
}

func TestEngine_ElitesAreNotReevaluated(t *testing.T) {
	cfg := testConfig()
	cfg.CrossoverProb = 1
	cfg.EliteCount = 4
	cfg.MaxGenerations = 3
	se := &sumEval{}
	e, err := NewEngine(cfg, testLayout, se)
	require.NoError(t, err)

	snaps := runToEnd(t, e)
	assert.Equal(t, 20, snaps[0].Evaluations)
	for _, s := range snaps[1:] {
		assert.Equal(t, 16, s.Evaluations)
	}
	assert.Equal(t, 20+3*16, se.evaluated)
}

func TestEngine_SeedsMaxDiameter(t *testing.T) {
	cfg := testConfig()
	cfg.SeedMaxDiameter = true
	e, err := NewEngine(cfg, testLayout, &sumEval{})
	require.NoError(t, err)
	e.Init()

	assert.Equal(t, genome.MaxDiameter(testLayout), e.Population()[0].Genes)
	assert.Len(t, e.Population(), cfg.PopulationSize)
	assert.Equal(t, Initialized, e.State())
}

func TestEngine_EvaluatorErrorStopsStep(t *testing.T) {
	boom := errors.New("solver gone")
	e, err := NewEngine(testConfig(), testLayout, failingEval{boom})
	require.NoError(t, err)
	_, err = e.Step(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestEngine_StepAfterTerminationPanics(t *testing.T) {
	cfg := testConfig()
	cfg.MaxGenerations = 1
	e, err := NewEngine(cfg, testLayout, &sumEval{})
	require.NoError(t, err)
	runToEnd(t, e)
	assert.Panics(t, func() { _, _ = e.Step(context.Background()) })
}

type failingEval struct{ err error }

func (f failingEval) EvaluateAll(context.Context, []genome.Chromosome, []bool) ([]evaluator.Result, error) {
	return nil, f.err
}

// #endregion engine-tests
