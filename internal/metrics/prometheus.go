package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *zap.Logger

	// Generator metrics
	runsTotal          *prometheus.CounterVec
	runErrorsTotal     prometheus.Counter
	runDuration        prometheus.Histogram
	runLockContentions prometheus.Counter
	occurrencesCreated prometheus.Counter
	seriesOutcomes     *prometheus.CounterVec
	completedTotal     prometheus.Counter

	// Provider metrics
	providerCallsTotal *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec
	circuitRejections  prometheus.Counter

	// Trigger metrics
	triggersTotal *prometheus.CounterVec
	triggerDrift  prometheus.Histogram
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PrometheusSink{logger: logger}
	s.initGeneratorMetrics(reg)
	s.initProviderMetrics(reg)
	s.initTriggerMetrics(reg)
	return s
}

func (s *PrometheusSink) initGeneratorMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easymeetings_generator_runs_total",
		Help: "Total number of generation runs started.",
	}, []string{"trigger"})
	s.runErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easymeetings_generator_run_errors_total",
		Help: "Total number of generation runs that reported at least one failure.",
	})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easymeetings_generator_run_duration_seconds",
		Help:    "Duration of each generation run in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	s.runLockContentions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easymeetings_generator_run_lock_contended_total",
		Help: "Total number of runs skipped because another run held the lock.",
	})
	s.occurrencesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easymeetings_generator_occurrences_created_total",
		Help: "Total number of occurrences created by generation runs.",
	})
	s.seriesOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easymeetings_generator_series_outcomes_total",
		Help: "Total number of per-series outcomes.",
	}, []string{"outcome"})
	s.completedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easymeetings_generator_occurrences_completed_total",
		Help: "Total number of past occurrences marked completed.",
	})

	s.register(reg, s.runsTotal, "easymeetings_generator_runs_total")
	s.register(reg, s.runErrorsTotal, "easymeetings_generator_run_errors_total")
	s.register(reg, s.runDuration, "easymeetings_generator_run_duration_seconds")
	s.register(reg, s.runLockContentions, "easymeetings_generator_run_lock_contended_total")
	s.register(reg, s.occurrencesCreated, "easymeetings_generator_occurrences_created_total")
	s.register(reg, s.seriesOutcomes, "easymeetings_generator_series_outcomes_total")
	s.register(reg, s.completedTotal, "easymeetings_generator_occurrences_completed_total")
}

func (s *PrometheusSink) initProviderMetrics(reg prometheus.Registerer) {
	s.providerCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easymeetings_provider_calls_total",
		Help: "Total number of meeting provider calls.",
	}, []string{"operation", "status_class"})
	s.providerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "easymeetings_provider_call_duration_seconds",
		Help:    "Meeting provider request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
	s.circuitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easymeetings_provider_circuit_rejections_total",
		Help: "Total number of provider calls rejected by an open circuit.",
	})

	s.register(reg, s.providerCallsTotal, "easymeetings_provider_calls_total")
	s.register(reg, s.providerDuration, "easymeetings_provider_call_duration_seconds")
	s.register(reg, s.circuitRejections, "easymeetings_provider_circuit_rejections_total")
}

func (s *PrometheusSink) initTriggerMetrics(reg prometheus.Registerer) {
	s.triggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easymeetings_trigger_fired_total",
		Help: "Total number of trigger firings.",
	}, []string{"trigger"})
	s.triggerDrift = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easymeetings_trigger_drift_seconds",
		Help:    "Difference between actual and scheduled fire time in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	s.register(reg, s.triggersTotal, "easymeetings_trigger_fired_total")
	s.register(reg, s.triggerDrift, "easymeetings_trigger_drift_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("metrics: failed to register collector", zap.String("metric", name), zap.Error(err))
	}
}

// Generator metrics implementation

func (s *PrometheusSink) RunStarted(trigger string) {
	s.runsTotal.WithLabelValues(trigger).Inc()
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, created, failed int, err error) {
	s.runDuration.Observe(duration.Seconds())
	s.occurrencesCreated.Add(float64(created))
	if err != nil || failed > 0 {
		s.runErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) RunLockContended() {
	s.runLockContentions.Inc()
}

func (s *PrometheusSink) SeriesOutcome(outcome string) {
	s.seriesOutcomes.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) OccurrencesCompleted(count int) {
	s.completedTotal.Add(float64(count))
}

// Provider metrics implementation

func (s *PrometheusSink) ProviderCallCompleted(operation, statusClass string, duration time.Duration) {
	s.providerCallsTotal.WithLabelValues(operation, statusClass).Inc()
	s.providerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (s *PrometheusSink) CircuitRejected() {
	s.circuitRejections.Inc()
}

// Trigger metrics implementation

func (s *PrometheusSink) TriggerFired(trigger string) {
	s.triggersTotal.WithLabelValues(trigger).Inc()
}

func (s *PrometheusSink) TriggerDrift(drift time.Duration) {
	d := drift.Seconds()
	if d < 0 {
		d = -d
	}
	s.triggerDrift.Observe(d)
}
