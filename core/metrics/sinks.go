package metrics

import (
	"errors"
	"fmt"

	"github.com/kilianp07/dispatchmap/core/factory"
)

// ErrUnknownSink is returned for a sink type nobody registered.
var ErrUnknownSink = errors.New("metrics: unknown sink")

var sinks = factory.NewRegistry[Sink]()

// RegisterSink makes a sink type available to NewSink.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinks.Names() }

// Config selects the sinks engine changes are recorded on.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// SetDefaults records on Prometheus when nothing is configured.
func (c *Config) SetDefaults() {
	if len(c.Sinks) == 0 {
		c.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	}
}

// Validate rejects sink types that are not registered.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if !sinks.Has(s.Type) {
			return fmt.Errorf("sinks[%d]: %w %q", i, ErrUnknownSink, s.Type)
		}
	}
	return nil
}

// NewSink builds the configured sinks. None yields a NopSink, several a
// MultiSink in configuration order.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	built := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sinks[%d] %s: %w", i, c.Type, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	default:
		return NewMultiSink(built...), nil
	}
}
