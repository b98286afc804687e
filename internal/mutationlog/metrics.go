// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package mutationlog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/fieldsync/internal/models"
)

var (
	mutationsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_mutations_enqueued_total",
		Help: "Total number of mutations appended to the log",
	}, []string{"type"})

	mutationEnqueueFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_mutation_enqueue_failures_total",
		Help: "Total number of failed enqueue attempts",
	})

	mutationsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_mutations_removed_total",
		Help: "Total number of mutations removed from the log",
	})

	mutationLogClears = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_mutation_log_clears_total",
		Help: "Total number of times the mutation log was cleared",
	})

	mutationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_mutation_queue_depth",
		Help: "Current number of pending mutations",
	})

	mutationEnqueueLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldsync_mutation_enqueue_latency_seconds",
		Help:    "Mutation enqueue latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
)

func recordEnqueue(t models.MutationType, d time.Duration) {
	mutationsEnqueued.WithLabelValues(t.String()).Inc()
	mutationEnqueueLatency.Observe(d.Seconds())
}

func recordEnqueueFailure() { mutationEnqueueFailures.Inc() }
func recordRemove()         { mutationsRemoved.Inc() }
func recordClear()          { mutationLogClears.Inc() }
func depthInc()             { mutationQueueDepth.Inc() }
func depthDec()             { mutationQueueDepth.Dec() }
func updateDepth(n int)     { mutationQueueDepth.Set(float64(n)) }
