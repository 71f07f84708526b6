package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pgtend metric instruments. All instruments share
// one registry so tests can use isolated instances.
type Metrics struct {
	registry *prometheus.Registry
	config   MetricsConfig

	// ResolutionsTotal counts per-cluster settings resolutions.
	ResolutionsTotal *prometheus.CounterVec

	// FilesGeneratedTotal counts generated configuration files by kind.
	FilesGeneratedTotal *prometheus.CounterVec

	// GenerationFailuresTotal counts generation failures by error kind.
	GenerationFailuresTotal *prometheus.CounterVec

	// RemoteWritesTotal counts remote file writes, labelled by whether
	// the content actually changed.
	RemoteWritesTotal *prometheus.CounterVec

	// ApplyRunsTotal counts provisioning runs by outcome.
	ApplyRunsTotal *prometheus.CounterVec

	// ApplyDuration observes end-to-end provisioning run duration.
	ApplyDuration *prometheus.HistogramVec

	// ServiceActionsTotal counts service control actions by action and
	// whether the action was skipped by its condition.
	ServiceActionsTotal *prometheus.CounterVec
}

// NewMetrics creates the metric instruments and registers them on a
// fresh registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if len(cfg.DefaultHistogramBuckets) == 0 {
		cfg.DefaultHistogramBuckets = DefaultConfig().Metrics.DefaultHistogramBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		config:   cfg,
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cluster_resolutions_total",
				Help:      "Number of per-cluster settings resolutions.",
			},
			[]string{"instance", "cluster"},
		),
		FilesGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "files_generated_total",
				Help:      "Number of configuration files generated, by file kind.",
			},
			[]string{"kind"},
		),
		GenerationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "generation_failures_total",
				Help:      "Number of failed resolutions or generations, by error kind.",
			},
			[]string{"kind"},
		),
		RemoteWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "remote_writes_total",
				Help:      "Number of remote configuration file writes.",
			},
			[]string{"changed"},
		),
		ApplyRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "apply_runs_total",
				Help:      "Number of provisioning runs, by outcome.",
			},
			[]string{"outcome"},
		),
		ApplyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "apply_duration_seconds",
				Help:      "Duration of provisioning runs.",
				Buckets:   cfg.DefaultHistogramBuckets,
			},
			[]string{"instance"},
		),
		ServiceActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "service_actions_total",
				Help:      "Number of service control actions, by action and result.",
			},
			[]string{"action", "result"},
		),
	}

	collectors := []prometheus.Collector{
		m.ResolutionsTotal,
		m.FilesGeneratedTotal,
		m.GenerationFailuresTotal,
		m.RemoteWritesTotal,
		m.ApplyRunsTotal,
		m.ApplyDuration,
		m.ServiceActionsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	return m, nil
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP server. It returns
// immediately; the server runs until the process exits.
func (m *Metrics) StartMetricsServer() *http.Server {
	mux := http.NewServeMux()
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, m.Handler())

	srv := &http.Server{
		Addr:    m.config.ListenAddress,
		Handler: mux,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}

// Timer measures a duration and records it on stop.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer against the given observer.
func NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), observer: observer}
}

// ObserveDuration records the elapsed time and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.observer.Observe(d.Seconds())
	return d
}
