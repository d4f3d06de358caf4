package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/optinet/internal/config"
	"github.com/danielpatrickdp/optinet/internal/constraint"
	"github.com/danielpatrickdp/optinet/internal/evaluator"
	"github.com/danielpatrickdp/optinet/internal/evolve"
	"github.com/danielpatrickdp/optinet/internal/genome"
	"github.com/danielpatrickdp/optinet/internal/hydraulic"
	"github.com/danielpatrickdp/optinet/internal/logging"
	"github.com/danielpatrickdp/optinet/internal/metrics"
	"github.com/danielpatrickdp/optinet/internal/network"
	"github.com/danielpatrickdp/optinet/internal/store"
)

// #region controller
// Options wires optional collaborators into a Controller.
type Options struct {
	Store    *store.Store     // nil runs without persistence
	Metrics  *metrics.Metrics // nil runs without instrumentation
	Observer func(GenerationStats)
}

// Controller drives one or more independent executions of the engine over
// the same network and keeps the overall best design.
type Controller struct {
	cfg    config.Config
	net    *network.Network
	cat    network.Catalog
	layout genome.Layout
	eval   *evaluator.Evaluator
	opts   Options
	events *eventRecorder
}

// New validates cfg and assembles the evaluation pipeline. The solver is
// wrapped with the configured per-call timeout. A zero violation cap is
// derived from the network and stored with the run's config.
func New(cfg config.Config, net *network.Network, cat network.Catalog, solver hydraulic.Solver, opts Options) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ViolationCap == 0 {
		cfg.ViolationCap = constraint.ViolationBound(net, cfg.Limits)
	}
	policy, err := constraint.NewPolicy(cfg.Limits, cfg.PenaltyWeight, cfg.ViolationCap, cat.MaxCost(net))
	if err != nil {
		return nil, err
	}
	layout := genome.NewLayout(net, cat, cfg.LayoutSearch)
	if cfg.LayoutSearch && !layout.LayoutSearch() {
		log.Printf("[RUN] layout search requested but %s has no candidate pipes", net.Name)
	}

	events := &eventRecorder{store: opts.Store}
	eval := evaluator.New(net, cat, layout, hydraulic.WithTimeout(solver, cfg.SolverTimeout), policy, evaluator.Options{
		Workers:   cfg.Workers,
		CacheSize: cfg.CacheSize,
		Metrics:   opts.Metrics,
		Events:    events,
	})
	return &Controller{
		cfg:    cfg,
		net:    net,
		cat:    cat,
		layout: layout,
		eval:   eval,
		opts:   opts,
		events: events,
	}, nil
}

// Evaluator exposes the pipeline, e.g. for exhaustive checks.
func (c *Controller) Evaluator() *evaluator.Evaluator { return c.eval }

// #endregion controller

// #region run
// Run executes every configured execution and returns the report. A solver
// failure other than non-convergence aborts the run with an error.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	rep := Report{Network: c.net.Name, Executions: c.cfg.Executions}
	// A drawn seed is stored with the config so the run can be replayed.
	for c.cfg.Optimizer.Seed == 0 {
		c.cfg.Optimizer.Seed = rand.Uint64()
	}

	if c.opts.Store != nil {
		cfgJSON, err := json.Marshal(c.cfg)
		if err != nil {
			return Report{}, fmt.Errorf("marshal config: %w", err)
		}
		rec, err := c.opts.Store.CreateRun(store.RunMeta{Network: c.net.Name, ConfigJSON: string(cfgJSON)})
		if err != nil {
			return Report{}, err
		}
		rep.RunID = rec.RunID
		c.events.runID = rec.RunID
	}
	log.Printf("[RUN] %s: %d pipes, %d genes, %d catalog sizes, %d execution(s)",
		c.net.Name, c.net.PipeCount(), c.layout.Len(), c.cat.Len(), c.cfg.Executions)

	var best evolve.Individual
	for x := 0; x < c.cfg.Executions; x++ {
		ecfg := c.cfg.Optimizer
		ecfg.Seed += uint64(x)
		eng, err := evolve.NewEngine(ecfg, c.layout, c.eval)
		if err != nil {
			return Report{}, err
		}
		rep.Seeds = append(rep.Seeds, eng.Seed())

		for !eng.Done() {
			c.events.generation.Store(int64(eng.Generation()))
			snap, err := eng.Step(ctx)
			if err != nil {
				err = fmt.Errorf("execution %d: %w", x, err)
				c.fail(eng.Generation(), logging.KindSolverFailure, err)
				return Report{}, err
			}
			st := newStats(x, snap)
			rep.History = append(rep.History, st)
			if err := c.record(st); err != nil {
				err = fmt.Errorf("execution %d: record generation %d: %w", x, st.Generation, err)
				c.fail(st.Generation, logging.KindTermination, err)
				return Report{}, err
			}
		}

		b, _ := eng.Best()
		if !best.Valid() || b.Fitness() < best.Fitness() {
			best = b
			rep.BestExecution = x
		}
		rep.Generations += eng.Generation() + 1
		rep.Reasons = append(rep.Reasons, eng.Reason())
		log.Printf("[RUN] execution %d/%d: %s after %d generation(s), best fitness %.2f (seed %d)",
			x+1, c.cfg.Executions, eng.Reason(), eng.Generation()+1, b.Fitness(), eng.Seed())
		c.event(-1, logging.KindExecution, fmt.Sprintf("execution %d: %s, fitness %g, seed %d", x, eng.Reason(), b.Fitness(), eng.Seed()))
	}

	c.fill(&rep, best)
	rep.SolverCalls = c.eval.SolverCalls()
	rep.Duration = time.Since(start)
	if !rep.Feasible {
		log.Printf("[RUN] no feasible design found; reporting the least-infeasible candidate")
	}
	if err := c.finish(rep); err != nil {
		err = fmt.Errorf("save result: %w", err)
		c.fail(-1, logging.KindTermination, err)
		return Report{}, err
	}
	return rep, nil
}

func (c *Controller) fill(rep *Report, best evolve.Individual) {
	rep.Chromosome = genome.Clone(best.Genes)
	rep.Best = genome.Decode(c.layout, c.net, c.cat, best.Genes)
	rep.Cost = best.Eval.Cost
	rep.Fitness = best.Eval.Fitness
	rep.Feasible = best.Eval.Feasible
	rep.Violation = best.Eval.Violation
	rep.Outcome = best.Eval.Outcome
	rep.MinPressure = best.Eval.MinPressure
	rep.MaxVelocity = best.Eval.MaxVelocity
	rep.Violations = best.Eval.Violations
}

// #endregion run

// #region persistence
func (c *Controller) record(st GenerationStats) error {
	c.opts.Metrics.SetGeneration(st.Generation, st.BestSoFar)
	if c.opts.Observer != nil {
		c.opts.Observer(st)
	}
	if c.opts.Store == nil {
		return nil
	}
	return c.opts.Store.AppendGeneration(c.events.runID, st.record())
}

func (c *Controller) finish(rep Report) error {
	if c.opts.Store == nil {
		return nil
	}
	assignment, err := json.Marshal(rep.Best)
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}
	result, err := json.Marshal(evaluator.Result{
		Outcome:     rep.Outcome,
		MinPressure: rep.MinPressure,
		MaxVelocity: rep.MaxVelocity,
		Cost:        rep.Cost,
		Feasible:    rep.Feasible,
		Violation:   rep.Violation,
		Fitness:     rep.Fitness,
		Violations:  rep.Violations,
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.opts.Store.SaveBest(store.BestRecord{
		RunID:          rep.RunID,
		Chromosome:     genome.Key(rep.Chromosome),
		AssignmentJSON: string(assignment),
		ResultJSON:     string(result),
	}); err != nil {
		return err
	}
	c.event(-1, logging.KindTermination, fmt.Sprintf("best cost %g, feasible %t", rep.Cost, rep.Feasible))
	return c.opts.Store.FinishRun(rep.RunID, store.RunOutcome{
		Status:      store.StatusCompleted,
		Reason:      strings.Join(rep.Reasons, ","),
		BestFitness: rep.Fitness,
		BestCost:    rep.Cost,
		Feasible:    rep.Feasible,
	})
}

// fail marks the stored run failed. kind is the event that records why:
// solver_failure for a dead solver, termination for a persistence error.
func (c *Controller) fail(gen int, kind string, cause error) {
	log.Printf("[RUN] aborted at generation %d: %v", gen, cause)
	if c.opts.Store == nil {
		return
	}
	c.event(gen, kind, cause.Error())
	if err := c.opts.Store.FinishRun(c.events.runID, store.RunOutcome{
		Status: store.StatusFailed,
		Reason: cause.Error(),
	}); err != nil {
		log.Printf("[RUN] warning: failed to mark run failed: %v", err)
	}
}

func (c *Controller) event(gen int, kind, detail string) {
	if c.opts.Store == nil {
		return
	}
	if err := logging.LogEvent(c.opts.Store.DB(), logging.EventEntry{
		RunID:      c.events.runID,
		Generation: gen,
		Kind:       kind,
		Detail:     detail,
	}); err != nil {
		log.Printf("[RUN] warning: failed to log %s event: %v", kind, err)
	}
}

// eventRecorder persists non-convergence occurrences reported by the evaluator.
type eventRecorder struct {
	store      *store.Store
	runID      string
	generation atomic.Int64
}

func (r *eventRecorder) NonConvergence(ch genome.Chromosome, err error) {
	if r.store == nil || r.runID == "" {
		return
	}
	if lerr := logging.LogEvent(r.store.DB(), logging.EventEntry{
		RunID:      r.runID,
		Generation: int(r.generation.Load()),
		Kind:       logging.KindNonConvergence,
		Detail:     genome.Key(ch) + ": " + err.Error(),
	}); lerr != nil {
		log.Printf("[RUN] warning: failed to log non-convergence: %v", lerr)
	}
}

// #endregion persistence

// #region stats
func newStats(execution int, s evolve.Snapshot) GenerationStats {
	mean, variance := stat.PopMeanVariance(s.Fitness, nil)
	return GenerationStats{
		Execution:    execution,
		Generation:   s.Generation,
		Evaluations:  s.Evaluations,
		BestCost:     s.GenerationBest.Eval.Cost,
		Mean:         mean,
		StdDev:       math.Sqrt(variance),
		Min:          floats.Min(s.Fitness),
		Max:          floats.Max(s.Fitness),
		FeasibleRate: float64(s.Feasible) / float64(len(s.Fitness)),
		BestSoFar:    s.BestSoFar.Fitness(),
		NonConverged: s.NonConverged,
	}
}

// #endregion stats
