// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package metrics exposes Prometheus collectors for the ingestion pipeline.
// All methods on a nil *Metrics are no-ops, so metrics are optional
// everywhere.
package metrics

import (
	"github.com/cartertinney/envmonitor/sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "envmonitor"

// Metrics holds the pipeline collectors.
type Metrics struct {
	received   *prometheus.CounterVec // by channel
	malformed  *prometheus.CounterVec // by channel
	applied    *prometheus.CounterVec // by source and category
	anomalies  *prometheus.CounterVec // by reason
	alerts     prometheus.Counter
	skipped    prometheus.Counter
	clears     prometheus.Counter
	confidence prometheus.Histogram

	bufferLength prometheus.Gauge
	connection   *prometheus.GaugeVec // by state, 1 for the current one
}

// NewRegistry creates a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the pipeline collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Inbound messages received, by channel",
		}, []string{"channel"}),

		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_malformed_total",
			Help:      "Inbound messages discarded by the normalizer, by channel",
		}, []string{"channel"}),

		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "readings_applied_total",
			Help:      "Readings folded into the history buffer",
		}, []string{"source", "category"}),

		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "anomalies_total",
			Help:      "Applied readings flagged as anomalous, by reason",
		}, []string{"reason"}),

		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "alerts_total",
			Help:      "Anomalies counted while alerts were enabled",
		}),

		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "readings_skipped_total",
			Help:      "Readings not applied because the pipeline was paused",
		}),

		clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "clears_total",
			Help:      "Number of times history and counters were cleared",
		}),

		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "confidence",
			Help:      "Confidence score of applied readings",
			Buckets:   prometheus.LinearBuckets(60, 5, 9),
		}),

		bufferLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "buffer_length",
			Help:      "Readings currently held in the history buffer",
		}),

		connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "connection_state",
			Help:      "Current connectivity state of the ingestion loop",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{
		m.received,
		m.malformed,
		m.applied,
		m.anomalies,
		m.alerts,
		m.skipped,
		m.clears,
		m.confidence,
		m.bufferLength,
		m.connection,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Received counts an inbound message.
func (m *Metrics) Received(ch sensor.Channel) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(string(ch)).Inc()
}

// Malformed counts a message discarded by the normalizer.
func (m *Metrics) Malformed(ch sensor.Channel) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(string(ch)).Inc()
}

// Applied records a reading that was folded into the buffer.
func (m *Metrics) Applied(d sensor.Derived, bufferLength int) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(string(d.Source), string(d.Category)).Inc()
	m.confidence.Observe(d.Confidence)
	if d.Anomaly {
		m.anomalies.WithLabelValues(d.AnomalyReason).Inc()
	}
	if d.AlertTriggered {
		m.alerts.Inc()
	}
	m.bufferLength.Set(float64(bufferLength))
}

// Skipped counts a reading dropped while paused.
func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// Cleared records a clear of the pipeline.
func (m *Metrics) Cleared() {
	if m == nil {
		return
	}
	m.clears.Inc()
	m.bufferLength.Set(0)
}

// ConnectionState marks state as the current connectivity state.
func (m *Metrics) ConnectionState(state string) {
	if m == nil {
		return
	}
	m.connection.Reset()
	m.connection.WithLabelValues(state).Set(1)
}
