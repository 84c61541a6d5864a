package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Metrics holds the job counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	artifactBytes     *prometheus.CounterVec
	filesPurged       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_executions_total",
			Help: "Finished job runs by kind and terminal status",
		}, []string{"kind", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harmony_execution_duration_seconds",
			Help:    "Duration of finished job runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		}, []string{"kind"}),
		artifactBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "harmony_artifact_bytes_total",
			Help: "Bytes written to artifact storage",
		}, []string{"kind"}),
		filesPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "harmony_files_purged_total",
			Help: "Backup files and exports removed by retention",
		}),
	}
}

// ObserveExecution records one finished run of a backup, export, import or
// migration job.
func (m *Metrics) ObserveExecution(kind, status string, d time.Duration) {
	m.executionsTotal.WithLabelValues(kind, status).Inc()
	m.executionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) AddArtifactBytes(kind string, n int64) {
	if n > 0 {
		m.artifactBytes.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) AddPurged(n int) {
	if n > 0 {
		m.filesPurged.Add(float64(n))
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger Logger) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
