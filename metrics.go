// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package jolokia

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome labels
const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeTransport = "transport_error"
)

// metrics holds the prometheus collectors of a client
type metrics struct {
	requests *prometheus.CounterVec
	entries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
}

// newMetrics creates and registers client collectors on reg
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jolokia",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of HTTP calls to the Jolokia agent",
			},
			[]string{"method", "outcome"},
		),
		entries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jolokia",
				Subsystem: "client",
				Name:      "entries_total",
				Help:      "Total number of response entries by request type and outcome",
			},
			[]string{"type", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jolokia",
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP calls to the Jolokia agent in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "jolokia",
				Subsystem: "client",
				Name:      "retries_total",
				Help:      "Total number of retried HTTP calls",
			},
		),
	}
}

// observe records a finished HTTP call. Safe on a nil receiver.
func (m *metrics) observe(method Method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(method), outcome).Inc()
	m.duration.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

// retry records a retry attempt. Safe on a nil receiver.
func (m *metrics) retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// observeEntry counts one response entry of a completed HTTP call. Safe on a nil receiver.
func (m *metrics) observeEntry(reqType RequestType, outcome string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(string(reqType), outcome).Inc()
}
