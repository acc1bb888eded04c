// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and tracing for the confx
// service.
//
// Metrics are exposed via the /metrics endpoint. All metric operations
// are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "confx"

// Metrics holds the Prometheus metrics for the confx service.
// Initialize once at startup via NewMetrics().
type Metrics struct {
	// EvaluationsTotal counts config evaluations.
	// Labels: source (DEFAULT_VALUE, RULE_MATCH, PREREQUISITE_NOT_MET,
	// CYCLIC_DEPENDENCY_ERROR), status (success, error)
	EvaluationsTotal *prometheus.CounterVec

	// EvaluationDurationSeconds observes end-to-end evaluation latency,
	// including recursive prerequisite resolution.
	EvaluationDurationSeconds prometheus.Histogram

	// PublishesTotal counts version publishes by status.
	// Labels: status (success, rejected, error)
	PublishesTotal *prometheus.CounterVec

	// ActiveSubscribers gauges currently connected SSE subscribers.
	ActiveSubscribers prometheus.Gauge

	// BroadcastsTotal counts change events handed to the distributor.
	// Labels: type (CONFIG_VERSION_UPDATED, ...)
	BroadcastsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns the confx metric set on reg.
// Registering the same set twice on one registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evaluations_total",
			Help:      "Config evaluations by source and status.",
		}, []string{"source", "status"}),
		EvaluationDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		PublishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publishes_total",
			Help:      "Version publishes by status.",
		}, []string{"status"}),
		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_subscribers",
			Help:      "Currently connected live-update subscribers.",
		}),
		BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Change events enqueued for broadcast by type.",
		}, []string{"type"}),
	}
}
