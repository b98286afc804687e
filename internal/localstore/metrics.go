// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package localstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeLSMBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_localstore_lsm_bytes",
		Help: "BadgerDB LSM tree size in bytes",
	})

	storeVlogBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_localstore_vlog_bytes",
		Help: "BadgerDB value log size in bytes",
	})

	storeGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_localstore_gc_runs_total",
		Help: "Total number of value log GC passes",
	})

	storeGCRewrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_localstore_gc_rewrites_total",
		Help: "Total number of value log files rewritten by GC",
	})
)

func updateSizeMetrics(lsm, vlog int64) {
	storeLSMBytes.Set(float64(lsm))
	storeVlogBytes.Set(float64(vlog))
}

func recordGCRun(rewrites int) {
	storeGCRuns.Inc()
	storeGCRewrites.Add(float64(rewrites))
}
