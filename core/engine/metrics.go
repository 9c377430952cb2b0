package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesReduced *prometheus.CounterVec
	reduceLatency   prometheus.Histogram
	commandLatency  *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	inflightGauge   prometheus.Gauge
	changesDropped  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, *prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Counter) {
	msgs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchmap_messages_reduced_total",
			Help: "Number of messages reduced by the engine",
		},
		[]string{"kind"},
	)
	reduce := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatchmap_reduce_duration_seconds",
			Help:    "Time spent reducing a message and applying render ops",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatchmap_command_latency_seconds",
			Help:    "Latency of gateway commands from issue to result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	cmds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchmap_commands_total",
			Help: "Gateway commands by outcome",
		},
		[]string{"op", "outcome"},
	)
	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatchmap_commands_inflight",
			Help: "Gateway commands awaiting a result",
		},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatchmap_changes_dropped_total",
			Help: "Changes missed by observers with a full buffer",
		},
	)
	return msgs, reduce, lat, cmds, inflight, dropped
}

func init() {
	messagesReduced, reduceLatency, commandLatency, commandsTotal, inflightGauge, changesDropped = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(messagesReduced, reduceLatency, commandLatency, commandsTotal, inflightGauge, changesDropped)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	messagesReduced, reduceLatency, commandLatency, commandsTotal, inflightGauge, changesDropped = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
