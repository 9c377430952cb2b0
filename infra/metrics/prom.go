package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
)

// PromSink exposes the client's view of the dispatch system as Prometheus
// series. The engine owns the per-command counters; this sink tracks what
// the viewer sees.
type PromSink struct {
	phase       *prometheus.GaugeVec
	tracked     prometheus.Gauge
	pending     prometheus.Gauge
	renderOps   prometheus.Counter
	connections *prometheus.CounterVec
	connected   prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatchmap_trip_phase",
			Help: "1 for the current passenger trip phase, 0 otherwise",
		}, []string{"phase"}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchmap_tracked_vehicles",
			Help: "Number of other on-trip cabs drawn on the map",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchmap_pending_trips",
			Help: "Number of trips awaiting allocation (operator view)",
		}),
		renderOps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatchmap_render_ops_total",
			Help: "Number of surface operations emitted",
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatchmap_channel_connections_total",
			Help: "Event channel connects and disconnects",
		}, []string{"event", "reconnect"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatchmap_channel_connected",
			Help: "1 while the event channel is connected",
		}),
	}
	var err error
	s.phase, err = register(reg, s.phase)
	if err != nil {
		return nil, err
	}
	if s.tracked, err = register(reg, s.tracked); err != nil {
		return nil, err
	}
	if s.pending, err = register(reg, s.pending); err != nil {
		return nil, err
	}
	if s.renderOps, err = register(reg, s.renderOps); err != nil {
		return nil, err
	}
	if s.connections, err = register(reg, s.connections); err != nil {
		return nil, err
	}
	if s.connected, err = register(reg, s.connected); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var phases = []string{"idle", "requested", "allocated", "cancelled"}

// RecordMessage updates the phase gauge.
func (s *PromSink) RecordMessage(ev coremetrics.MessageEvent) error {
	if ev.Phase == "" {
		return nil
	}
	for _, p := range phases {
		v := 0.0
		if p == ev.Phase {
			v = 1
		}
		s.phase.WithLabelValues(p).Set(v)
	}
	return nil
}

// RecordScene sets the scene gauges.
func (s *PromSink) RecordScene(ev coremetrics.SceneEvent) error {
	s.tracked.Set(float64(ev.Tracked))
	s.pending.Set(float64(ev.Pending))
	s.renderOps.Add(float64(ev.Ops))
	return nil
}

// RecordConnection counts channel connectivity changes.
func (s *PromSink) RecordConnection(ev coremetrics.ConnectionEvent) error {
	event := "disconnect"
	if ev.Connected {
		event = "connect"
		s.connected.Set(1)
	} else {
		s.connected.Set(0)
	}
	s.connections.WithLabelValues(event, strconv.FormatBool(ev.Reconnect)).Inc()
	return nil
}
