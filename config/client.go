package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/session"
)

// ViewerConfig lists the surfaces the render model is drawn on.
type ViewerConfig struct {
	Surfaces []factory.ModuleConfig `json:"surfaces"`
}

// SetDefaults draws on the console when nothing else is configured.
func (c *ViewerConfig) SetDefaults() {
	if len(c.Surfaces) == 0 {
		c.Surfaces = []factory.ModuleConfig{{Type: "console"}}
	}
}

// SessionConfig locates the startup snapshot: a JSON file, or the snapshot
// written inline in the configuration.
type SessionConfig struct {
	File     string            `json:"file"`
	Snapshot *session.Snapshot `json:"snapshot"`
}

// ErrNoSession is returned when neither a file nor an inline snapshot is set.
var ErrNoSession = errors.New("session: file or snapshot is required")

// Load returns the snapshot, reading File when set.
func (c SessionConfig) Load() (session.Snapshot, error) {
	if c.File != "" {
		return session.Load(c.File)
	}
	if c.Snapshot == nil {
		return session.Snapshot{}, ErrNoSession
	}
	if err := c.Snapshot.Validate(); err != nil {
		return session.Snapshot{}, err
	}
	return *c.Snapshot, nil
}

// EngineConfig tunes the engine loop and the reducer.
type EngineConfig struct {
	InboxSize      int           `json:"inbox_size"`
	CommandTimeout time.Duration `json:"command_timeout"`
	BusBuffer      int           `json:"bus_buffer"`
	// ResyncOnReconnect defaults to true.
	ResyncOnReconnect *bool   `json:"resync_on_reconnect"`
	NearbyRadiusKm    float64 `json:"nearby_radius_km"`
}

// SetDefaults applies sane defaults.
func (c *EngineConfig) SetDefaults() {
	ec := c.Engine()
	ec.SetDefaults()
	c.InboxSize, c.CommandTimeout, c.BusBuffer = ec.InboxSize, ec.CommandTimeout, ec.BusBuffer
	if c.ResyncOnReconnect == nil {
		on := true
		c.ResyncOnReconnect = &on
	}
	if c.NearbyRadiusKm <= 0 {
		c.NearbyRadiusKm = 5
	}
}

// Validate checks the values are usable.
func (c EngineConfig) Validate() error {
	if c.InboxSize < 0 || c.BusBuffer < 0 {
		return fmt.Errorf("inbox_size and bus_buffer must not be negative")
	}
	if c.NearbyRadiusKm < 0 {
		return fmt.Errorf("nearby_radius_km must not be negative")
	}
	return nil
}

// Engine returns the engine loop settings.
func (c EngineConfig) Engine() engine.Config {
	return engine.Config{InboxSize: c.InboxSize, CommandTimeout: c.CommandTimeout, BusBuffer: c.BusBuffer}
}

// Options returns the reducer options.
func (c EngineConfig) Options() dispatch.Options {
	return dispatch.Options{
		ResyncOnReconnect: c.ResyncOnReconnect == nil || *c.ResyncOnReconnect,
		NearbyRadiusKm:    c.NearbyRadiusKm,
	}
}
