package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter publishes per-loop cycle statistics as Prometheus metrics.
// It implements CycleObserver; wire it into a loop's Observers to have
// every cycle update the exported series.
type Exporter struct {
	registry *prometheus.Registry

	cyclesTotal       *prometheus.CounterVec
	improvementsTotal *prometheus.CounterVec
	failedTotal       *prometheus.CounterVec
	actionsTotal      *prometheus.CounterVec
	lastScore         *prometheus.GaugeVec
	cycleDuration     *prometheus.HistogramVec
}

// NewExporter creates an exporter with a private registry.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{registry: registry}

	e.cyclesTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "cycles_total",
		Help:      "Total cycles executed per loop",
	}, []string{"loop"})

	e.improvementsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "improvements_total",
		Help:      "Cycles that applied adaptations with a success rate above 0.5",
	}, []string{"loop"})

	e.failedTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "failed_cycles_total",
		Help:      "Cycles abandoned due to panics or timeout",
	}, []string{"loop"})

	e.actionsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "actions_total",
		Help:      "Adaptation action applications per loop and outcome",
	}, []string{"loop", "outcome"})

	e.lastScore = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "last_overall_score",
		Help:      "Overall score of the most recent analysis (0-1)",
	}, []string{"loop"})

	e.cycleDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedback",
		Subsystem: "loop",
		Name:      "cycle_duration_seconds",
		Help:      "Wall-clock duration of one cycle in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"loop"})

	return e
}

// Registry exposes the exporter's registry so callers can serve it over
// promhttp or merge it into an existing one.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// CycleCompleted implements CycleObserver.
func (e *Exporter) CycleCompleted(result CycleResult) {
	labels := prometheus.Labels{"loop": result.Loop}

	e.cyclesTotal.With(labels).Inc()
	e.lastScore.With(labels).Set(result.Analysis.OverallScore)
	e.cycleDuration.With(labels).Observe(result.Duration.Seconds())

	if result.Err != nil {
		e.failedTotal.With(labels).Inc()
	}
	if result.Improved {
		e.improvementsTotal.With(labels).Inc()
	}
	for _, outcome := range result.Outcomes {
		status := "failure"
		if outcome.Success {
			status = "success"
		}
		e.actionsTotal.With(prometheus.Labels{"loop": result.Loop, "outcome": status}).Inc()
	}
}
