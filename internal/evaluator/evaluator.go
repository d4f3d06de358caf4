package evaluator

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/genome"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/network"
)

// #region evaluator
// Evaluator scores chromosomes by simulating the designs they encode.
type Evaluator struct {
	net    *network.Network
	cat    network.Catalog
	layout genome.Layout
	solver hydraulic.Solver
	policy constraint.Policy
	opts   Options
	memo   *memo
	calls  atomic.Int64
}

// New creates an evaluator. The solver must be safe for opts.Workers
// concurrent calls; wrap it with hydraulic.Serialized when it is not.
func New(net *network.Network, cat network.Catalog, layout genome.Layout, solver hydraulic.Solver, policy constraint.Policy, opts Options) *Evaluator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Evaluator{
		net:    net,
		cat:    cat,
		layout: layout,
		solver: solver,
		policy: policy,
		opts:   opts,
		memo:   newMemo(opts.CacheSize),
	}
}

// Network returns the network being designed.
func (e *Evaluator) Network() *network.Network { return e.net }

// Catalog returns the commercial diameters genes index into.
func (e *Evaluator) Catalog() network.Catalog { return e.cat }

// Layout returns the gene layout used to decode chromosomes.
func (e *Evaluator) Layout() genome.Layout { return e.layout }

// Policy returns the feasibility and penalty policy.
func (e *Evaluator) Policy() constraint.Policy { return e.policy }

// SolverCalls reports how many simulations have been requested.
func (e *Evaluator) SolverCalls() int64 { return e.calls.Load() }

// #endregion evaluator

// #region evaluate
// Evaluate decodes and simulates one chromosome. Non-convergence, including a
// result with non-finite readings, is an ordinary outcome scored with the
// policy's worst fitness. Any other solver error, including an incomplete
// result, is returned and means the solver is unusable.
func (e *Evaluator) Evaluate(ctx context.Context, c genome.Chromosome) (Result, error) {
	key := genome.Key(c)
	if r, ok := e.memo.get(key); ok {
		return r, nil
	}

	a := genome.Decode(e.layout, e.net, e.cat, c)
	if e.layout.LayoutSearch() {
		if cut := e.net.Disconnected(a.Present()); cut != nil {
			as := e.policy.Disconnected(e.net, cut)
			r := Result{
				Outcome:    Disconnected,
				Cost:       a.TotalCost,
				Violation:  as.Magnitude,
				Fitness:    e.policy.Fitness(a.TotalCost, as),
				Violations: as.Violations,
			}
			e.opts.Metrics.ObserveEvaluation(string(Disconnected), 0)
			e.memo.put(key, r)
			return r, nil
		}
	}

	e.calls.Add(1)
	start := time.Now()
	req := hydraulic.NewRequest(e.net, a)
	res, err := e.solver.Simulate(ctx, req)
	elapsed := time.Since(start)
	if err == nil {
		err = res.Check(req)
	}

	switch {
	case hydraulic.IsNonConvergence(err):
		log.Printf("[EVAL] %s did not converge: %v", key, err)
		if e.opts.Events != nil {
			e.opts.Events.NonConvergence(c, err)
		}
		e.opts.Metrics.ObserveEvaluation(string(NonConverged), elapsed)
		r := Result{
			Outcome: NonConverged,
			Cost:    a.TotalCost,
			Fitness: e.policy.WorstFitness(),
		}
		e.memo.put(key, r)
		return r, nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("evaluate %s: %w", key, err)
	}

	as := e.policy.Assess(e.net, a, res)
	e.opts.Metrics.ObserveEvaluation(string(Converged), elapsed)
	r := Result{
		Outcome:     Converged,
		MinPressure: as.MinPressure,
		MaxVelocity: as.MaxVelocity,
		Cost:        a.TotalCost,
		Feasible:    as.Feasible,
		Violation:   as.Magnitude,
		Fitness:     e.policy.Fitness(a.TotalCost, as),
		Violations:  as.Violations,
	}
	e.memo.put(key, r)
	return r, nil
}

// #endregion evaluate

// #region evaluate-all
// EvaluateAll scores a batch on up to Workers goroutines. Entries with
// skip[i] set are left zero. Results are positional, so their order never
// depends on completion order. The first fatal error cancels the batch.
func (e *Evaluator) EvaluateAll(ctx context.Context, cs []genome.Chromosome, skip []bool) ([]Result, error) {
	if skip != nil && len(skip) != len(cs) {
		panic(fmt.Sprintf("evaluator: %d skip flags for %d chromosomes", len(skip), len(cs)))
	}

	out := make([]Result, len(cs))
	p := pool.New().
		WithMaxGoroutines(e.opts.Workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i := range cs {
		if skip != nil && skip[i] {
			continue
		}
		p.Go(func(ctx context.Context) error {
			r, err := e.Evaluate(ctx, cs[i])
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion evaluate-all

// #region enumerate
// Enumerate evaluates every chromosome of the design space and returns the
// one with the lowest fitness, first in enumeration order on ties. Spaces
// larger than limit are refused.
func (e *Evaluator) Enumerate(ctx context.Context, limit int) (Oracle, error) {
	if size := e.layout.Space(limit); size > limit {
		return Oracle{}, fmt.Errorf("%w: more than %d designs", ErrSpaceTooLarge, limit)
	}

	const batchSize = 256
	var o Oracle
	cur := make(genome.Chromosome, e.layout.Len())
	done := false
	for !done {
		batch := make([]genome.Chromosome, 0, batchSize)
		for len(batch) < batchSize && !done {
			batch = append(batch, genome.Clone(cur))
			done = !e.next(cur)
		}

		results, err := e.EvaluateAll(ctx, batch, nil)
		if err != nil {
			return Oracle{}, err
		}
		for i, r := range results {
			o.Evaluated++
			if r.Feasible {
				o.Feasible++
			}
			if o.Best == nil || r.Fitness < o.Result.Fitness {
				o.Best, o.Result = batch[i], r
			}
		}
	}
	return o, nil
}

// next advances c like an odometer, gene 0 fastest. It reports false after
// the last chromosome.
func (e *Evaluator) next(c genome.Chromosome) bool {
	for i := range c {
		if c[i] < e.layout.Upper(i) {
			c[i]++
			return true
		}
		c[i] = 0
	}
	return false
}

// #endregion enumerate
