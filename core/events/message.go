package events

import (
	"encoding/json"

	"github.com/kilianp07/dispatchmap/core/model"
)

const (
	KindLocationUpdate = "location_update"
	KindTripAllocated  = "trip_allocated"
	KindNewTripRequest = "new_trip_request"
	KindConnected      = "connect"
	KindDisconnected   = "disconnect"
	// KindUnknown is the kind of every Unknown, whatever its wire name.
	KindUnknown = "unknown"

	KindPickLocation   = "pick_location"
	KindRequestTrip    = "request_trip"
	KindReRequestTrip  = "re_request_trip"
	KindUpdateLocation = "update_location"
	KindAllocate       = "allocate_vehicle"
	KindFinishTrip     = "finish_trip"

	KindRequestTripResult    = "request_trip_result"
	KindReRequestTripResult  = "re_request_trip_result"
	KindUpdateLocationResult = "update_location_result"
	KindAllocateResult       = "allocate_vehicle_result"
	KindFinishTripResult     = "finish_trip_result"
	KindNearbyResult         = "nearby_result"
)

// Message is a value the reducer consumes. The set of implementations is
// closed to this package.
type Message interface {
	Kind() string
	isMessage()
}

// LocationUpdate reports a cab position and status.
type LocationUpdate struct {
	VehicleID model.ID            `json:"vehicle_id"`
	Position  model.LatLon        `json:"position"`
	Status    model.VehicleStatus `json:"status"`
}

// TripAllocated announces that a cab has been assigned to a trip.
type TripAllocated struct {
	TripID           model.ID      `json:"trip_id"`
	EmployeeID       model.ID      `json:"employee_id"`
	VehicleID        model.ID      `json:"vehicle_id"`
	VehiclePosition  model.LatLon  `json:"vehicle_position"`
	EmployeePosition *model.LatLon `json:"employee_position,omitempty"`
}

// NewTripRequest announces a trip awaiting allocation.
type NewTripRequest struct {
	Trip model.Trip `json:"trip"`
}

// Connected is emitted by a transport once the channel is usable.
// Reconnect is true for every connection after the first.
type Connected struct {
	Reconnect bool `json:"reconnect"`
}

// Disconnected is emitted when a transport loses its connection.
type Disconnected struct {
	Reason string `json:"reason,omitempty"`
}

// Unknown carries an event kind the client does not understand. Name is the
// wire kind; Kind always reports KindUnknown so a backend event named like
// an internal message is never mistaken for it.
type Unknown struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PickLocation is the viewer choosing their own position on the map.
type PickLocation struct {
	Position model.LatLon `json:"position"`
}

// RequestTrip asks for a trip from the viewer's current location.
type RequestTrip struct{}

// ReRequestTrip retries the last cancelled trip.
type ReRequestTrip struct{}

// UpdateLocation pushes the viewer's picked location to the backend.
type UpdateLocation struct{}

// AllocateVehicle asks the backend to allocate a cab to a pending trip.
type AllocateVehicle struct {
	TripID model.ID `json:"trip_id"`
}

// FinishTrip ends the viewer's allocated trip.
type FinishTrip struct{}

// RequestTripResult is the outcome of a request-trip command.
type RequestTripResult struct {
	CommandID string        `json:"command_id"`
	TripID    model.ID      `json:"trip_id,omitempty"`
	Err       *CommandError `json:"error,omitempty"`
}

// ReRequestTripResult is the outcome of a re-request command.
type ReRequestTripResult struct {
	CommandID   string        `json:"command_id"`
	CancelledID model.ID      `json:"cancelled_id"`
	TripID      model.ID      `json:"trip_id,omitempty"`
	Err         *CommandError `json:"error,omitempty"`
}

// UpdateLocationResult is the outcome of an update-location command.
type UpdateLocationResult struct {
	CommandID string        `json:"command_id"`
	Position  model.LatLon  `json:"position"`
	Err       *CommandError `json:"error,omitempty"`
}

// AllocateResult is the outcome of an allocate command. Success only means
// the backend accepted the request; the allocation itself is confirmed by a
// TripAllocated event.
type AllocateResult struct {
	CommandID string        `json:"command_id"`
	TripID    model.ID      `json:"trip_id"`
	VehicleID model.ID      `json:"vehicle_id,omitempty"`
	Err       *CommandError `json:"error,omitempty"`
}

// FinishTripResult is the outcome of a finish-trip command.
type FinishTripResult struct {
	CommandID string        `json:"command_id"`
	TripID    model.ID      `json:"trip_id"`
	Err       *CommandError `json:"error,omitempty"`
}

// NearbyResult carries the engaged cabs returned by a resync query.
type NearbyResult struct {
	CommandID string          `json:"command_id"`
	Vehicles  []model.Vehicle `json:"vehicles,omitempty"`
	Err       *CommandError   `json:"error,omitempty"`
}

func (LocationUpdate) Kind() string       { return KindLocationUpdate }
func (TripAllocated) Kind() string        { return KindTripAllocated }
func (NewTripRequest) Kind() string       { return KindNewTripRequest }
func (Connected) Kind() string            { return KindConnected }
func (Disconnected) Kind() string         { return KindDisconnected }
func (Unknown) Kind() string              { return KindUnknown }
func (PickLocation) Kind() string         { return KindPickLocation }
func (RequestTrip) Kind() string          { return KindRequestTrip }
func (ReRequestTrip) Kind() string        { return KindReRequestTrip }
func (UpdateLocation) Kind() string       { return KindUpdateLocation }
func (AllocateVehicle) Kind() string      { return KindAllocate }
func (FinishTrip) Kind() string           { return KindFinishTrip }
func (RequestTripResult) Kind() string    { return KindRequestTripResult }
func (ReRequestTripResult) Kind() string  { return KindReRequestTripResult }
func (UpdateLocationResult) Kind() string { return KindUpdateLocationResult }
func (AllocateResult) Kind() string       { return KindAllocateResult }
func (FinishTripResult) Kind() string     { return KindFinishTripResult }
func (NearbyResult) Kind() string         { return KindNearbyResult }

func (LocationUpdate) isMessage()       {}
func (TripAllocated) isMessage()        {}
func (NewTripRequest) isMessage()       {}
func (Connected) isMessage()            {}
func (Disconnected) isMessage()         {}
func (Unknown) isMessage()              {}
func (PickLocation) isMessage()         {}
func (RequestTrip) isMessage()          {}
func (ReRequestTrip) isMessage()        {}
func (UpdateLocation) isMessage()       {}
func (AllocateVehicle) isMessage()      {}
func (FinishTrip) isMessage()           {}
func (RequestTripResult) isMessage()    {}
func (ReRequestTripResult) isMessage()  {}
func (UpdateLocationResult) isMessage() {}
func (AllocateResult) isMessage()       {}
func (FinishTripResult) isMessage()     {}
func (NearbyResult) isMessage()         {}

// IsIntent reports whether m originates from the local viewer.
func IsIntent(m Message) bool {
	switch m.(type) {
	case PickLocation, RequestTrip, ReRequestTrip, UpdateLocation, AllocateVehicle, FinishTrip:
		return true
	}
	return false
}
