package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments structure dumps. A nil *Metrics records nothing.
type Metrics struct {
	dumpsTotal        *prometheus.CounterVec
	dumpDuration      *prometheus.HistogramVec
	migrationsApplied *prometheus.CounterVec
	stageFailures     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
// (prometheus.DefaultRegisterer if nil).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "schemadump"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		dumpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dumps_total",
			Help:      "Total number of structure dumps by engine and result",
		}, []string{"engine", "result"}),
		dumpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dump_duration_seconds",
			Help:      "Duration of structure dumps in seconds, migrations included",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"engine"}),
		migrationsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_applied_total",
			Help:      "Total number of migrations applied before dumping",
		}, []string{"engine"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of failed dumps by the stage that failed",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.dumpsTotal,
		m.dumpDuration,
		m.migrationsApplied,
		m.stageFailures,
	)

	return m
}

func (m *Metrics) RecordDumpSuccess(engine string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dumpsTotal.WithLabelValues(engine, "success").Inc()
	m.dumpDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

func (m *Metrics) RecordDumpFailure(engine, stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dumpsTotal.WithLabelValues(engine, "failure").Inc()
	m.dumpDuration.WithLabelValues(engine).Observe(duration.Seconds())
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordMigrationsApplied(engine string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.migrationsApplied.WithLabelValues(engine).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
