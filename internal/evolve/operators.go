package evolve

import (
	"math/rand/v2"
	"sort"

	"github.com/danielpatrickdp/optinet/internal/genome"
)

// #region selection
// Tournament samples k individuals uniformly with replacement and returns a
// copy of the one with the lowest fitness. Earlier draws win ties.
func Tournament(pop Population, k int, rng *rand.Rand) Individual {
	if k < 1 {
		k = 1
	}
	winner := pop[rng.IntN(len(pop))]
	for i := 1; i < k; i++ {
		if c := pop[rng.IntN(len(pop))]; c.Fitness() < winner.Fitness() {
			winner = c
		}
	}
	return winner.Clone()
}

// Elites returns copies of the n lowest-fitness individuals, best first.
// Equal fitness keeps population order.
func Elites(pop Population, n int) Population {
	n = min(n, len(pop))
	if n <= 0 {
		return nil
	}
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pop[order[a]].Fitness() < pop[order[b]].Fitness()
	})
	out := make(Population, n)
	for i := range out {
		out[i] = pop[order[i]].Clone()
	}
	return out
}

// #endregion selection

// #region variation
// TwoPointCrossover swaps one random non-empty gene range between copies of
// a and b. The inputs are not modified.
func TwoPointCrossover(a, b genome.Chromosome, rng *rand.Rand) (genome.Chromosome, genome.Chromosome) {
	ca, cb := genome.Clone(a), genome.Clone(b)
	n := min(len(ca), len(cb))
	if n < 2 {
		return ca, cb
	}
	lo, hi := rng.IntN(n), rng.IntN(n)
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := lo; i <= hi; i++ {
		ca[i], cb[i] = cb[i], ca[i]
	}
	return ca, cb
}

// Mutate redraws each gene with probability p, uniformly within its bound.
// It reports whether any gene value changed.
func Mutate(c genome.Chromosome, l genome.Layout, p float64, rng *rand.Rand) bool {
	changed := false
	for i := range c {
		if rng.Float64() >= p {
			continue
		}
		v := rng.IntN(l.Upper(i) + 1)
		if v != c[i] {
			c[i] = v
			changed = true
		}
	}
	return changed
}

// #endregion variation
