package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for resolution passes.
type Metrics struct {
	config MetricsConfig

	passesTotal   *prometheus.CounterVec
	passDuration  prometheus.Histogram
	pagesResolved prometheus.Gauge
	warningsTotal prometheus.Counter
	filesLoaded   *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec
	configInvalid prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op: every Record method checks for nil collectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of resolution passes by status",
			},
			[]string{"status"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of resolution passes in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		pagesResolved: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pages_resolved",
				Help:      "Number of pages resolved by the last successful pass",
			},
		),
		warningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warnings_total",
				Help:      "Total number of warnings emitted",
			},
		),
		filesLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_loaded_total",
				Help:      "Total number of plus files loaded by format",
			},
			[]string{"format"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of pass errors by class and code",
			},
			[]string{"class", "code"},
		),
		configInvalid: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_invalid",
				Help:      "1 while the configuration is invalid",
			},
		),
	}

	registry.MustRegister(
		m.passesTotal,
		m.passDuration,
		m.pagesResolved,
		m.warningsTotal,
		m.filesLoaded,
		m.errorsByCode,
		m.configInvalid,
	)

	return m, nil
}

// RecordPass records a finished pass with its status and duration.
func (m *Metrics) RecordPass(status string, duration time.Duration, pages int) {
	if m == nil || m.passesTotal == nil {
		return
	}
	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(duration.Seconds())
	if status == "success" {
		m.pagesResolved.Set(float64(pages))
	}
}

// RecordWarning increments the warning counter.
func (m *Metrics) RecordWarning() {
	if m == nil || m.warningsTotal == nil {
		return
	}
	m.warningsTotal.Inc()
}

// RecordFileLoaded records a loaded plus file by format.
func (m *Metrics) RecordFileLoaded(format string) {
	if m == nil || m.filesLoaded == nil {
		return
	}
	m.filesLoaded.WithLabelValues(format).Inc()
}

// RecordError records a pass error by class and code.
func (m *Metrics) RecordError(class, code string) {
	if m == nil || m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// SetConfigInvalid reports whether the configuration is currently invalid.
func (m *Metrics) SetConfigInvalid(invalid bool) {
	if m == nil || m.configInvalid == nil {
		return
	}
	if invalid {
		m.configInvalid.Set(1)
	} else {
		m.configInvalid.Set(0)
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
// Serve errors are reported through errFn.
func (m *Metrics) StartMetricsServer(errFn func(error)) error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed && errFn != nil {
			errFn(err)
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it is running.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
