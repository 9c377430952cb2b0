package model

import (
	"fmt"
	"strings"
)

// TripState is the lifecycle state of a trip from the viewer's perspective.
type TripState int

const (
	TripNone TripState = iota
	TripRequested
	TripAllocated
	TripCancelled
)

func (s TripState) String() string {
	switch s {
	case TripRequested:
		return "requested"
	case TripAllocated:
		return "allocated"
	case TripCancelled:
		return "cancelled"
	default:
		return "none"
	}
}

func (s TripState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TripState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "requested", "pending":
		*s = TripRequested
	case "allocated", "ongoing":
		*s = TripAllocated
	case "cancelled", "canceled":
		*s = TripCancelled
	case "", "none", "completed":
		*s = TripNone
	default:
		return fmt.Errorf("unknown trip state %q", string(b))
	}
	return nil
}

// Trip is a ride request.
type Trip struct {
	ID          ID        `json:"id"`
	RequesterID ID        `json:"requester_id"`
	Start       LatLon    `json:"start"`
	State       TripState `json:"state"`
}

// Role identifies which client the viewer runs.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleOperator  Role = "operator"
)

// ParseRole accepts the canonical names and the backend's employee/admin
// aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passenger", "employee":
		return RolePassenger, nil
	case "operator", "admin":
		return RoleOperator, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
