package engine

import (
	"context"

	"github.com/kilianp07/dispatchmap/core/model"
)

// Gateway performs the backend calls requested by the reducer. Failures
// should be *events.CommandError; anything else is treated as unexpected.
type Gateway interface {
	RequestTrip(ctx context.Context, pos model.LatLon) (model.ID, error)
	ReRequestTrip(ctx context.Context, cancelled model.ID) (model.ID, error)
	UpdateLocation(ctx context.Context, pos model.LatLon) error
	AllocateTrip(ctx context.Context, trip model.ID) (model.ID, error)
	FinishTrip(ctx context.Context, trip model.ID) error
	// Nearby lists engaged cabs around pos. A nil pos lists the whole fleet.
	Nearby(ctx context.Context, pos *model.LatLon, radiusKm float64) ([]model.Vehicle, error)
}
