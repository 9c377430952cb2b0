// Package session holds the one-time snapshot a client starts from: who the
// viewer is, where they are, which cab is already theirs and which cabs are
// visible at t=0.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kilianp07/dispatchmap/core/model"
)

var (
	// ErrNoViewer is returned when the snapshot does not identify the viewer.
	ErrNoViewer = errors.New("viewer id is required")
	// ErrNoRole is returned when the snapshot role is missing or unknown.
	ErrNoRole = errors.New("viewer role is required")
)

// Assignment is a trip already allocated when the session starts.
type Assignment struct {
	TripID  model.ID      `json:"trip_id"`
	Vehicle model.Vehicle `json:"vehicle"`
}

// Snapshot is read once at startup and never consulted again.
type Snapshot struct {
	ViewerID     model.ID        `json:"viewer_id"`
	Role         string          `json:"role"`
	Self         *model.LatLon   `json:"self,omitempty"`
	Assigned     *Assignment     `json:"assigned,omitempty"`
	Visible      []model.Vehicle `json:"visible,omitempty"`
	PendingTrips []model.Trip    `json:"pending_trips,omitempty"`
	// CSRFToken is attached to every command by the gateway.
	CSRFToken string `json:"csrf_token,omitempty"`
}

// ViewerRole parses the configured role.
func (s Snapshot) ViewerRole() (model.Role, error) {
	if s.Role == "" {
		return "", ErrNoRole
	}
	r, err := model.ParseRole(s.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoRole, err)
	}
	return r, nil
}

// Validate checks the snapshot is usable.
func (s Snapshot) Validate() error {
	if s.ViewerID.Empty() {
		return ErrNoViewer
	}
	role, err := s.ViewerRole()
	if err != nil {
		return err
	}
	if s.Self != nil && !s.Self.Valid() {
		return fmt.Errorf("invalid self location %s", s.Self)
	}
	if s.Assigned != nil {
		if role != model.RolePassenger {
			return fmt.Errorf("assigned vehicle is only valid for passengers")
		}
		if err := s.Assigned.Vehicle.Validate(); err != nil {
			return fmt.Errorf("assigned: %w", err)
		}
	}
	for _, v := range s.Visible {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("visible: %w", err)
		}
	}
	for _, t := range s.PendingTrips {
		if t.ID.Empty() {
			return fmt.Errorf("pending trip without id")
		}
	}
	return nil
}

// Load reads a JSON snapshot from path and validates it.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read session: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode session: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
