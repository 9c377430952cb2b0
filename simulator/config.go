// Package simulator publishes fake cab movement on the MQTT event channel so
// the client can be exercised without a backend.
package simulator

import (
	"fmt"
	"time"

	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/infra/mqtt"
)

// DefaultBase is the IIT Jodhpur campus.
var DefaultBase = model.LatLon{Lat: 26.4715, Lon: 73.1134}

// Config holds parameters for the simulator.
type Config struct {
	MQTT     mqtt.Config   `json:"mqtt"`
	Cabs     int           `json:"cabs"`
	Interval time.Duration `json:"interval"`
	// Base is the point cabs wander around; RadiusKm keeps them close to it.
	Base       model.LatLon `json:"base"`
	RadiusKm   float64      `json:"radius_km"`
	StepMeters float64      `json:"step_meters"`
	// OnTripRatio is the share of cabs reported on_trip when no hourly
	// profile is given.
	OnTripRatio float64 `json:"on_trip_ratio"`
	// FlipRate is the per tick probability that a cab changes status.
	FlipRate    float64 `json:"flip_rate"`
	ProfileFile string  `json:"profile_file"`
	Seed        int64   `json:"seed"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Cabs <= 0 {
		c.Cabs = 10
	}
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.Base == (model.LatLon{}) {
		c.Base = DefaultBase
	}
	if c.RadiusKm <= 0 {
		c.RadiusKm = 3
	}
	if c.StepMeters <= 0 {
		c.StepMeters = 60
	}
	if c.OnTripRatio == 0 {
		c.OnTripRatio = 0.6
	}
	if c.FlipRate == 0 {
		c.FlipRate = 0.02
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "dispatchmap-simulator"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if !c.Base.Valid() {
		return fmt.Errorf("invalid base %s", c.Base)
	}
	if c.OnTripRatio < 0 || c.OnTripRatio > 1 {
		return fmt.Errorf("on_trip_ratio must be within [0,1]")
	}
	if c.FlipRate < 0 || c.FlipRate > 1 {
		return fmt.Errorf("flip_rate must be within [0,1]")
	}
	return nil
}
