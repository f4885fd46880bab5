// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/kubemirror/core/object"
)

const metricsNamespace = "kubemirror_relay"

// Collector is a prometheus.Collector that collects metrics about the
// relay's sessions and subscriptions.
type Collector struct {
	sessions      prometheus.Gauge
	subscriptions prometheus.Gauge
	forwarded     *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	streamErrors  prometheus.Counter
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "sessions",
				Help:      "The number of open relay sessions.",
			},
		),
		subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "subscriptions",
				Help:      "The number of active subscriptions across all sessions.",
			},
		),
		forwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_forwarded_total",
				Help:      "The number of change events forwarded to clients.",
			}, []string{"type"},
		),
		decodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "decode_errors_total",
				Help:      "The number of change records that could not be decoded.",
			},
		),
		streamErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stream_errors_total",
				Help:      "The number of subscriptions ended by a stream failure.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.sessions.Describe(ch)
	c.subscriptions.Describe(ch)
	c.forwarded.Describe(ch)
	c.decodeErrors.Describe(ch)
	c.streamErrors.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.sessions.Collect(ch)
	c.subscriptions.Collect(ch)
	c.forwarded.Collect(ch)
	c.decodeErrors.Collect(ch)
	c.streamErrors.Collect(ch)
}

func (c *Collector) forwardedEvent(t object.ChangeType) {
	c.forwarded.WithLabelValues(string(t)).Inc()
}
