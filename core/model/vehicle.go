package model

import (
	"fmt"
	"strings"
)

// VehicleStatus is the availability class reported for a cab.
type VehicleStatus int

const (
	StatusUnknown VehicleStatus = iota
	StatusAvailable
	StatusOnTrip
	StatusUnavailable
)

// ParseVehicleStatus maps the wire value to a VehicleStatus. Unrecognised
// values map to StatusUnknown, which is treated like any other non on-trip
// status.
func ParseVehicleStatus(s string) VehicleStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return StatusAvailable
	case "on_trip", "ontrip", "on-trip":
		return StatusOnTrip
	case "unavailable":
		return StatusUnavailable
	default:
		return StatusUnknown
	}
}

func (s VehicleStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusOnTrip:
		return "on_trip"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (s VehicleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *VehicleStatus) UnmarshalText(b []byte) error {
	*s = ParseVehicleStatus(string(b))
	return nil
}

// Vehicle is a cab as seen by the viewer.
type Vehicle struct {
	ID       ID            `json:"id"`
	Position LatLon        `json:"position"`
	Status   VehicleStatus `json:"status"`
}

// Engaged reports whether the vehicle is currently serving a trip.
func (v Vehicle) Engaged() bool { return v.Status == StatusOnTrip }

// Validate checks the vehicle has an id and a usable position.
func (v Vehicle) Validate() error {
	if v.ID.Empty() {
		return fmt.Errorf("vehicle id is required")
	}
	if !v.Position.Valid() {
		return fmt.Errorf("vehicle %s: invalid position %s", v.ID, v.Position)
	}
	return nil
}
