// Package metrics exposes the recorder's Prometheus counters.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "historian"

// Extrinsic handling paths.
const (
	PathFailedTransfer = "failed_transfer"
	PathSummary        = "summary"
	PathEvm            = "evm"
	PathSkipped        = "skipped"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op sink.
type Metrics struct {
	registry *prometheus.Registry

	extrinsics   *prometheus.CounterVec
	entries      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	swapsDropped prometheus.Counter
	blocks       prometheus.Counter
	lastBlock    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extrinsics_total",
			Help:      "Extrinsics handled, by path.",
		}, []string{"path"}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_entries_total",
			Help:      "History entries saved, by payload kind.",
		}, []string{"kind"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_errors_total",
			Help:      "Extrinsics that could not be processed, by reason.",
		}, []string{"reason"}),
		swapsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_dropped_total",
			Help:      "Failed swaps dropped because a path endpoint did not resolve.",
		}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks processed.",
		}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_block",
			Help:      "Number of the last processed block.",
		}),
	}
	m.registry.MustRegister(m.extrinsics, m.entries, m.errors, m.swapsDropped, m.blocks, m.lastBlock)
	return m
}

func (m *Metrics) ObserveExtrinsic(path string) {
	if m == nil {
		return
	}
	m.extrinsics.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveEntry(kind string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveError(reason string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSwapDropped() {
	if m == nil {
		return
	}
	m.swapsDropped.Inc()
}

func (m *Metrics) ObserveBlock(number uint64) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.lastBlock.Set(float64(number))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
