package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/dispatchmap/core/model"
)

// ErrMissingField is returned when a required wire field is absent.
var ErrMissingField = errors.New("missing field")

type locationUpdateWire struct {
	CabID  model.ID `json:"cab_id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Status string   `json:"status"`
}

type tripAllocatedWire struct {
	TripID      model.ID `json:"trip_id"`
	EmployeeID  model.ID `json:"employee_id"`
	CabID       model.ID `json:"cab_id"`
	CabLat      *float64 `json:"cab_lat"`
	CabLon      *float64 `json:"cab_lon"`
	EmployeeLat *float64 `json:"employee_lat,omitempty"`
	EmployeeLon *float64 `json:"employee_lon,omitempty"`
}

type newTripRequestWire struct {
	ID         model.ID `json:"id"`
	EmployeeID model.ID `json:"employee_id"`
	StartLat   *float64 `json:"start_lat"`
	StartLon   *float64 `json:"start_lon"`
}

// Decode converts a backend event into a Message. Unknown kinds decode to
// Unknown without error so the caller can log and continue.
func Decode(kind string, payload []byte) (Message, error) {
	switch kind {
	case KindLocationUpdate:
		var w locationUpdateWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if w.CabID.Empty() || w.Lat == nil || w.Lon == nil {
			return nil, fmt.Errorf("decode %s: %w: cab_id, lat and lon are required", kind, ErrMissingField)
		}
		return LocationUpdate{
			VehicleID: w.CabID,
			Position:  model.LatLon{Lat: *w.Lat, Lon: *w.Lon},
			Status:    model.ParseVehicleStatus(w.Status),
		}, nil
	case KindTripAllocated:
		var w tripAllocatedWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if w.TripID.Empty() || w.CabID.Empty() || w.CabLat == nil || w.CabLon == nil {
			return nil, fmt.Errorf("decode %s: %w: trip_id, cab_id, cab_lat and cab_lon are required", kind, ErrMissingField)
		}
		ev := TripAllocated{
			TripID:          w.TripID,
			EmployeeID:      w.EmployeeID,
			VehicleID:       w.CabID,
			VehiclePosition: model.LatLon{Lat: *w.CabLat, Lon: *w.CabLon},
		}
		if w.EmployeeLat != nil && w.EmployeeLon != nil {
			ev.EmployeePosition = &model.LatLon{Lat: *w.EmployeeLat, Lon: *w.EmployeeLon}
		}
		return ev, nil
	case KindNewTripRequest:
		var w newTripRequestWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		if w.ID.Empty() || w.StartLat == nil || w.StartLon == nil {
			return nil, fmt.Errorf("decode %s: %w: id, start_lat and start_lon are required", kind, ErrMissingField)
		}
		return NewTripRequest{Trip: model.Trip{
			ID:          w.ID,
			RequesterID: w.EmployeeID,
			Start:       model.LatLon{Lat: *w.StartLat, Lon: *w.StartLon},
			State:       model.TripRequested,
		}}, nil
	case KindConnected:
		return Connected{}, nil
	case KindDisconnected:
		return Disconnected{}, nil
	default:
		return Unknown{Name: kind, Payload: append(json.RawMessage(nil), payload...)}, nil
	}
}

// Encode renders a channel event in the backend wire format.
func Encode(m Message) (string, []byte, error) {
	var v any
	switch e := m.(type) {
	case LocationUpdate:
		v = locationUpdateWire{CabID: e.VehicleID, Lat: &e.Position.Lat, Lon: &e.Position.Lon, Status: e.Status.String()}
	case TripAllocated:
		w := tripAllocatedWire{
			TripID:     e.TripID,
			EmployeeID: e.EmployeeID,
			CabID:      e.VehicleID,
			CabLat:     &e.VehiclePosition.Lat,
			CabLon:     &e.VehiclePosition.Lon,
		}
		if e.EmployeePosition != nil {
			w.EmployeeLat = &e.EmployeePosition.Lat
			w.EmployeeLon = &e.EmployeePosition.Lon
		}
		v = w
	case NewTripRequest:
		v = newTripRequestWire{ID: e.Trip.ID, EmployeeID: e.Trip.RequesterID, StartLat: &e.Trip.Start.Lat, StartLon: &e.Trip.Start.Lon}
	default:
		return "", nil, fmt.Errorf("%s is not a channel event", m.Kind())
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return m.Kind(), b, nil
}

// Envelope is the self-describing form of a message used by the journal.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Marshal wraps m in an Envelope.
func Marshal(m Message) (Envelope, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", m.Kind(), err)
	}
	return Envelope{Kind: m.Kind(), Data: b}, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var envelopeDecoders = map[string]func([]byte) (Message, error){
	KindLocationUpdate:       decodeAs[LocationUpdate],
	KindTripAllocated:        decodeAs[TripAllocated],
	KindNewTripRequest:       decodeAs[NewTripRequest],
	KindConnected:            decodeAs[Connected],
	KindDisconnected:         decodeAs[Disconnected],
	KindUnknown:              decodeAs[Unknown],
	KindPickLocation:         decodeAs[PickLocation],
	KindRequestTrip:          decodeAs[RequestTrip],
	KindReRequestTrip:        decodeAs[ReRequestTrip],
	KindUpdateLocation:       decodeAs[UpdateLocation],
	KindAllocate:             decodeAs[AllocateVehicle],
	KindFinishTrip:           decodeAs[FinishTrip],
	KindRequestTripResult:    decodeAs[RequestTripResult],
	KindReRequestTripResult:  decodeAs[ReRequestTripResult],
	KindUpdateLocationResult: decodeAs[UpdateLocationResult],
	KindAllocateResult:       decodeAs[AllocateResult],
	KindFinishTripResult:     decodeAs[FinishTripResult],
	KindNearbyResult:         decodeAs[NearbyResult],
}

// Unmarshal restores the message held by env.
func Unmarshal(env Envelope) (Message, error) {
	dec, ok := envelopeDecoders[env.Kind]
	if !ok {
		return Unknown{Name: env.Kind, Payload: env.Data}, nil
	}
	m, err := dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
	}
	return m, nil
}
