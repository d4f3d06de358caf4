package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// #region metrics
// Metrics instruments the optimizer. A nil *Metrics is valid and records
// nothing, so components take one unconditionally.
type Metrics struct {
	evaluations   *prometheus.CounterVec
	solverSeconds prometheus.Histogram
	generation    prometheus.Gauge
	bestFitness   prometheus.Gauge
}

// New creates the optimizer metrics and registers them on reg.
// reg may be nil for unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optinet_evaluations_total",
			Help: "Candidate designs evaluated, by outcome.",
		}, []string{"outcome"}),
		solverSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "optinet_solver_seconds",
			Help:    "Wall time of single hydraulic simulations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optinet_generation",
			Help: "Generation most recently completed.",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optinet_best_fitness",
			Help: "Best-so-far fitness of the running execution.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.evaluations, m.solverSeconds, m.generation, m.bestFitness)
	}
	return m
}

// #endregion metrics

// #region recorders
// ObserveEvaluation counts one evaluation and, when a simulation ran, its duration.
func (m *Metrics) ObserveEvaluation(outcome string, solverTime time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	if solverTime > 0 {
		m.solverSeconds.Observe(solverTime.Seconds())
	}
}

// SetGeneration records a completed generation and the best-so-far fitness.
func (m *Metrics) SetGeneration(gen int, bestFitness float64) {
	if m == nil {
		return
	}
	m.generation.Set(float64(gen))
	m.bestFitness.Set(bestFitness)
}

// #endregion recorders
