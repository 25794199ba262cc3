// Package observability — metrics.go
//
// Prometheus metrics for the fraud detection pipeline.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format (OpenMetrics compatible).
// Bind: loopback only by default — no external exposure.
//
// Metric naming convention: frauddetect_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.
//
// Cardinality control:
//   - Model version is a label (2 values: n, n_minus_1).
//   - Account name is NOT a label (unbounded cardinality); risk state
//     counts are aggregated before recording.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Producer ─────────────────────────────────────────────────────────────

	// TransactionsProducedTotal counts synthetic transactions generated.
	TransactionsProducedTotal prometheus.Counter

	// BatchesProducedTotal counts producer batches written to Buffer1.
	BatchesProducedTotal prometheus.Counter

	// ─── Buffers ──────────────────────────────────────────────────────────────

	// Buffer1Depth is the current number of pending transactions in Buffer1.
	Buffer1Depth prometheus.Gauge

	// Buffer2Depth is the current number of pending inferred transactions in Buffer2.
	Buffer2Depth prometheus.Gauge

	// ─── Consumer / Modelizer ─────────────────────────────────────────────────

	// TransactionsClassifiedTotal counts transactions run through the model.
	// Labels: model_version (n, n_minus_1)
	TransactionsClassifiedTotal *prometheus.CounterVec

	// FraudFlaggedTotal counts transactions classified as fraud.
	FraudFlaggedTotal prometheus.Counter

	// ActiveModelVersion reports the currently active model generation as a
	// gauge (0 = n, 1 = n_minus_1) since Prometheus gauges cannot hold strings.
	ActiveModelVersion prometheus.Gauge

	// ─── Alarm ────────────────────────────────────────────────────────────────

	// AlarmsTriggeredTotal counts successful alarm deliveries.
	AlarmsTriggeredTotal prometheus.Counter

	// AlarmsFailedTotal counts failed alarm delivery attempts.
	AlarmsFailedTotal prometheus.Counter

	// AlarmsThrottledTotal counts alarms rejected by the token-bucket throttle.
	AlarmsThrottledTotal prometheus.Counter

	// ─── Risk escalation ──────────────────────────────────────────────────────

	// RiskStateTransitionsTotal counts account risk state transitions.
	// Labels: from_state, to_state
	RiskStateTransitionsTotal *prometheus.CounterVec

	// TrackedAccounts is the current number of accounts under active tracking.
	TrackedAccounts prometheus.Gauge

	// ─── Logger / Storage ─────────────────────────────────────────────────────

	// RecordsLoggedTotal counts pending transactions written to storage.
	RecordsLoggedTotal prometheus.Counter

	// StorageWriteLatency records storage write batch latency.
	StorageWriteLatency prometheus.Histogram

	// StorageWriteErrorsTotal counts failed storage write batches.
	StorageWriteErrorsTotal prometheus.Counter

	// ─── Process ──────────────────────────────────────────────────────────────

	// UptimeSeconds is the number of seconds since the process started.
	UptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers all pipeline Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		TransactionsProducedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "producer",
			Name:      "transactions_total",
			Help:      "Total synthetic transactions generated by the producer.",
		}),

		BatchesProducedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "producer",
			Name:      "batches_total",
			Help:      "Total batches written to buffer1.",
		}),

		Buffer1Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frauddetect",
			Subsystem: "buffer",
			Name:      "buffer1_depth",
			Help:      "Current number of pending transactions queued in buffer1.",
		}),

		Buffer2Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frauddetect",
			Subsystem: "buffer",
			Name:      "buffer2_depth",
			Help:      "Current number of inferred transactions queued in buffer2.",
		}),

		TransactionsClassifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "consumer",
			Name:      "classified_total",
			Help:      "Total transactions classified, by active model version.",
		}, []string{"model_version"}),

		FraudFlaggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "consumer",
			Name:      "fraud_flagged_total",
			Help:      "Total transactions classified as fraud.",
		}),

		ActiveModelVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frauddetect",
			Subsystem: "consumer",
			Name:      "active_model_version",
			Help:      "Active model generation: 0 = n, 1 = n_minus_1.",
		}),

		AlarmsTriggeredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "alarm",
			Name:      "triggered_total",
			Help:      "Total alarms successfully delivered.",
		}),

		AlarmsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "alarm",
			Name:      "failed_total",
			Help:      "Total alarm delivery attempts that failed.",
		}),

		AlarmsThrottledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "alarm",
			Name:      "throttled_total",
			Help:      "Total alarms rejected by the rate throttle.",
		}),

		RiskStateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "risk",
			Name:      "state_transitions_total",
			Help:      "Total account risk state transitions, by from_state and to_state.",
		}, []string{"from_state", "to_state"}),

		TrackedAccounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frauddetect",
			Subsystem: "risk",
			Name:      "tracked_accounts",
			Help:      "Current number of accounts under active risk tracking.",
		}),

		RecordsLoggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "logger",
			Name:      "records_total",
			Help:      "Total pending transaction records written to storage.",
		}),

		StorageWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "frauddetect",
			Subsystem: "storage",
			Name:      "write_latency_seconds",
			Help:      "Storage write batch latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		StorageWriteErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frauddetect",
			Subsystem: "storage",
			Name:      "write_errors_total",
			Help:      "Total storage write batches that failed.",
		}),

		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "frauddetect",
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since process start.",
		}),
	}

	reg.MustRegister(
		m.TransactionsProducedTotal,
		m.BatchesProducedTotal,
		m.Buffer1Depth,
		m.Buffer2Depth,
		m.TransactionsClassifiedTotal,
		m.FraudFlaggedTotal,
		m.ActiveModelVersion,
		m.AlarmsTriggeredTotal,
		m.AlarmsFailedTotal,
		m.AlarmsThrottledTotal,
		m.RiskStateTransitionsTotal,
		m.TrackedAccounts,
		m.RecordsLoggedTotal,
		m.StorageWriteLatency,
		m.StorageWriteErrorsTotal,
		m.UptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// StatsSource is queried by the /stats endpoint for a live JSON snapshot,
// independent of the Prometheus text format.
type StatsSource interface {
	Stats() map[string]any
}

// ServeHTTP starts the observability HTTP surface on addr, exposing
// /metrics (Prometheus), /healthz (liveness), and /stats (JSON snapshot,
// if statsSource is non-nil). Blocks until ctx is cancelled or the server
// fails.
func (m *Metrics) ServeHTTP(ctx context.Context, addr string, statsSource StatsSource) error {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if statsSource == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		_ = json.NewEncoder(w).Encode(statsSource.Stats())
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("observability server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
