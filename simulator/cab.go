package simulator

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb/geo"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

// Cab is one simulated vehicle.
type Cab struct {
	ID       model.ID
	Position model.LatLon
	Status   model.VehicleStatus

	heading float64
}

// Step moves the cab stepMeters along a jittered heading. A cab that has
// wandered past radiusKm turns back towards base. With probability flip the
// status is drawn again from onTrip.
func (c *Cab) Step(base model.LatLon, radiusKm, stepMeters, onTrip, flip float64, rng *rand.Rand) {
	pos := c.Position.Point()
	if c.Position.DistanceKm(base) > radiusKm {
		c.heading = geo.Bearing(pos, base.Point())
	} else {
		c.heading = math.Mod(c.heading+rng.NormFloat64()*30+360, 360)
	}
	c.Position = model.FromPoint(geo.PointAtBearingAndDistance(pos, c.heading, stepMeters))
	if rng.Float64() < flip {
		c.Status = drawStatus(onTrip, rng)
	}
}

// Update returns the location_update event for the cab's current state.
func (c *Cab) Update() events.LocationUpdate {
	return events.LocationUpdate{VehicleID: c.ID, Position: c.Position, Status: c.Status}
}
