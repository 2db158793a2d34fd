// Package metrics exposes D-Star gateway health over Prometheus: reflector
// link counts/state, APRS-IS connectivity and queue depth, and ircDDB
// connection state. Grounded on the teacher's pkg/metrics/collector.go
// metric surface (peers/bytes/streams-shaped counters) generalized to
// D-Star's link/queue/directory concerns and wired against the real
// prometheus/client_golang registry the teacher's own go.mod names but
// never imports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every metric this gateway exports.
type Collector struct {
	registry *prometheus.Registry

	LinksActive  *prometheus.GaugeVec
	LinksTotal   *prometheus.CounterVec
	LinkFailures *prometheus.CounterVec

	ReflectorBytesReceived *prometheus.CounterVec
	ReflectorBytesSent     *prometheus.CounterVec

	APRSConnected  prometheus.Gauge
	APRSQueueDepth prometheus.Gauge
	APRSFramesSent prometheus.Counter
	APRSFramesDrop prometheus.Counter

	IRCDDBState     prometheus.Gauge
	IRCDDBRepeaters prometheus.Gauge

	HostsLastRefresh prometheus.Gauge
}

// NewCollector creates a Collector registered against a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,

		LinksActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dstargw_links_active",
			Help: "Number of currently linked reflector sessions, by protocol.",
		}, []string{"protocol"}),

		LinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dstargw_links_total",
			Help: "Total link attempts, by protocol and outcome.",
		}, []string{"protocol", "outcome"}),

		LinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dstargw_link_failures_total",
			Help: "Total link failures, by protocol and reason.",
		}, []string{"protocol", "reason"}),

		ReflectorBytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dstargw_reflector_bytes_received_total",
			Help: "Bytes received from reflector links, by protocol.",
		}, []string{"protocol"}),

		ReflectorBytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dstargw_reflector_bytes_sent_total",
			Help: "Bytes sent to reflector links, by protocol.",
		}, []string{"protocol"}),

		APRSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dstargw_aprs_connected",
			Help: "1 if the APRS-IS client currently has an open session, else 0.",
		}),

		APRSQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dstargw_aprs_outbound_queue_depth",
			Help: "Current depth of the APRS-IS outbound queue.",
		}),

		APRSFramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dstargw_aprs_frames_sent_total",
			Help: "Total APRS-IS frames written to the wire.",
		}),

		APRSFramesDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dstargw_aprs_frames_dropped_total",
			Help: "Total APRS-IS frames dropped due to backpressure or disconnection.",
		}),

		IRCDDBState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dstargw_ircddb_state",
			Help: "Current ircDDB client FSM state (numeric, see ircddb.State).",
		}),

		IRCDDBRepeaters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dstargw_ircddb_repeaters_known",
			Help: "Number of repeater-to-gateway bindings currently known from ircDDB.",
		}),

		HostsLastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dstargw_hosts_last_refresh_unixtime",
			Help: "Unix timestamp of the last successful hosts-file refresh.",
		}),
	}

	reg.MustRegister(
		c.LinksActive, c.LinksTotal, c.LinkFailures,
		c.ReflectorBytesReceived, c.ReflectorBytesSent,
		c.APRSConnected, c.APRSQueueDepth, c.APRSFramesSent, c.APRSFramesDrop,
		c.IRCDDBState, c.IRCDDBRepeaters,
		c.HostsLastRefresh,
	)

	return c
}

// LinkOpened records a successful link transition to LINKED.
func (c *Collector) LinkOpened(protocol string) {
	c.LinksActive.WithLabelValues(protocol).Inc()
	c.LinksTotal.WithLabelValues(protocol, "linked").Inc()
}

// LinkClosed records a link leaving LINKED, whether by clean unlink or
// failure.
func (c *Collector) LinkClosed(protocol string) {
	c.LinksActive.WithLabelValues(protocol).Dec()
}

// LinkFailed records a link attempt that never reached LINKED.
func (c *Collector) LinkFailed(protocol, reason string) {
	c.LinksTotal.WithLabelValues(protocol, "failed").Inc()
	c.LinkFailures.WithLabelValues(protocol, reason).Inc()
}
