// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package metrics declares the Prometheus collectors shared across FieldSync:
// drain passes, blob staging and promotion, backend calls, circuit breaker
// state, the local HTTP API and the websocket status stream.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Drain passes
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fieldsync_drain_duration_seconds",
			Help:    "Duration of a full drain pass in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	DrainPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_drain_passes_total",
			Help: "Total number of drain passes by trigger",
		},
		[]string{"trigger"}, // manual, auto, reconnect
	)

	DrainRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_drain_rejected_total",
			Help: "Drain requests rejected because a pass was already running",
		},
	)

	MutationsReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_mutations_replayed_total",
			Help: "Mutations replayed against the backend by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: success, failed
	)

	TempIDResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_temp_id_resolutions_total",
			Help: "Temporary project reference resolutions by source",
		},
		[]string{"source"}, // pass, lookup, miss
	)

	// Blob staging and promotion
	BlobsStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_blobs_staged_total",
			Help: "Total number of blobs staged locally",
		},
	)

	BlobBytesStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_blob_bytes_staged_total",
			Help: "Total bytes staged locally",
		},
	)

	BlobsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldsync_blobs_removed_total",
			Help: "Total number of staged blobs removed",
		},
	)

	BlobPromotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_blob_promotions_total",
			Help: "Photo slot promotions by slot and outcome",
		},
		[]string{"slot", "outcome"}, // outcome: uploaded, skipped, warning
	)

	// Backend calls
	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_backend_call_duration_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "op"},
	)

	BackendCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_backend_call_errors_total",
			Help: "Backend call errors by operation and error class",
		},
		[]string{"backend", "op", "class"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync status
	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_online",
			Help: "1 when the backend is reachable, 0 otherwise",
		},
	)

	LastDrainTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_last_drain_timestamp_seconds",
			Help: "Unix time of the last completed drain pass",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldsync_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldsync_websocket_connections",
			Help: "Current number of websocket status subscribers",
		},
	)
)

// RecordDrain observes one completed pass.
func RecordDrain(trigger string, duration time.Duration) {
	DrainPasses.WithLabelValues(trigger).Inc()
	DrainDuration.Observe(duration.Seconds())
	LastDrainTimestamp.Set(float64(time.Now().Unix()))
}

// RecordReplay counts one replayed mutation.
func RecordReplay(mutationType string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failed"
	}
	MutationsReplayed.WithLabelValues(mutationType, outcome).Inc()
}

func RecordTempIDResolution(source string) {
	TempIDResolutions.WithLabelValues(source).Inc()
}

func RecordBlobStaged(size int) {
	BlobsStaged.Inc()
	BlobBytesStaged.Add(float64(size))
}

func RecordBlobsRemoved(n int) {
	BlobsRemoved.Add(float64(n))
}

func RecordBlobPromotion(slot, outcome string) {
	BlobPromotions.WithLabelValues(slot, outcome).Inc()
}

// RecordBackendCall observes latency and, on error, the error class.
func RecordBackendCall(backend, op string, duration time.Duration, class string) {
	BackendCallDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	if class != "" {
		BackendCallErrors.WithLabelValues(backend, op, class).Inc()
	}
}

func SetOnline(online bool) {
	if online {
		Online.Set(1)
		return
	}
	Online.Set(0)
}

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
