// Package metrics exposes Prometheus metrics for the order lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Order lifecycle metrics.
var (
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "router",
		Name:      "orders_submitted_total",
		Help:      "Order submissions by symbol, side and outcome.",
	}, []string{"symbol", "side", "outcome"})

	SubmitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "router",
		Name:      "submit_retries_total",
		Help:      "Submission attempts beyond the first.",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "router",
		Name:      "cache_hits_total",
		Help:      "Submissions answered from the intent result cache.",
	})

	ExchangeDiscoveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "router",
		Name:      "exchange_discoveries_total",
		Help:      "Submissions resolved by client-order-id lookup on the exchange.",
	})

	SubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dipbot",
		Subsystem: "router",
		Name:      "submit_latency_seconds",
		Help:      "End-to-end submission latency including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// Fill wait metrics.
var (
	FillWaitOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "fillwait",
		Name:      "outcomes_total",
		Help:      "Fill wait results: filled, canceled, timeout, stuck_partial, aborted.",
	}, []string{"outcome"})

	FillWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dipbot",
		Subsystem: "fillwait",
		Name:      "duration_seconds",
		Help:      "Time spent waiting for a terminal order state.",
		Buckets:   prometheus.LinearBuckets(0.5, 2.5, 14),
	})
)

// Compliance metrics.
var (
	ComplianceViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "compliance",
		Name:      "violations_total",
		Help:      "Compliance violations by kind.",
	}, []string{"kind"})

	GhostEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "compliance",
		Name:      "ghost_entries_total",
		Help:      "Aborted intents recorded for audit.",
	})
)

// Reconciliation metrics.
var (
	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Reconciliation passes completed.",
	})

	ReconcileDesyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dipbot",
		Subsystem: "reconcile",
		Name:      "desyncs_total",
		Help:      "Detected desyncs by kind: orphaned_order, missing_fill.",
	}, []string{"kind"})
)

// ErrorsTotal counts errors by component.
var ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dipbot",
	Name:      "errors_total",
	Help:      "Errors by component.",
}, []string{"component"})
