// Package dispatch holds the client-side view of the dispatch system and the
// pure reducer that evolves it. Reduce is the only place state changes; it
// never performs I/O and instead returns the commands the caller must run.
package dispatch

import (
	"fmt"

	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/session"
)

// Phase is the passenger trip state machine position.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRequested Phase = "requested"
	PhaseAllocated Phase = "allocated"
	PhaseCancelled Phase = "cancelled"
)

// Options tunes reducer behaviour.
type Options struct {
	// ResyncOnReconnect makes a reconnect trigger a nearby-cabs query that
	// replaces the tracked set.
	ResyncOnReconnect bool
	// NearbyRadiusKm is the radius of the resync query.
	NearbyRadiusKm float64
}

// Inflight records commands awaiting a response. It drives the enabled
// state of affordances; the reducer itself does not deduplicate.
type Inflight struct {
	Request   bool
	ReRequest bool
	Update    bool
	Finish    bool
	// Allocate holds trips with an allocate command outstanding or accepted
	// but not yet confirmed by a trip_allocated event.
	Allocate map[model.ID]bool
}

// State is the canonical client view.
type State struct {
	ViewerID model.ID
	Role     model.Role
	Opts     Options

	Self *model.LatLon
	// Trip is the passenger's own trip; State is TripNone when idle.
	Trip model.Trip
	// CancelledTripID is exposed for re-request while in the cancelled phase.
	CancelledTripID model.ID
	// Assigned is the cab allocated to Trip. Its id is never a key of Tracked.
	Assigned *model.Vehicle
	Tracked  map[model.ID]model.Vehicle
	// Pending holds operator trips awaiting allocation.
	Pending map[model.ID]model.Trip
	// Allocated maps operator-visible cabs to the trip they were allocated to.
	Allocated map[model.ID]model.ID

	Inflight   Inflight
	StatusText string
}

// New seeds a State from the session snapshot. Visible vehicles that are not
// on a trip, or that are the assigned cab, are dropped.
func New(snap session.Snapshot, opts Options) (State, error) {
	if err := snap.Validate(); err != nil {
		return State{}, err
	}
	role, _ := snap.ViewerRole()
	s := State{
		ViewerID:  snap.ViewerID,
		Role:      role,
		Opts:      opts,
		Tracked:   map[model.ID]model.Vehicle{},
		Pending:   map[model.ID]model.Trip{},
		Allocated: map[model.ID]model.ID{},
		Inflight:  Inflight{Allocate: map[model.ID]bool{}},
	}
	if snap.Self != nil {
		self := *snap.Self
		s.Self = &self
	}
	if snap.Assigned != nil {
		v := snap.Assigned.Vehicle
		s.Assigned = &v
		s.Trip = model.Trip{ID: snap.Assigned.TripID, RequesterID: snap.ViewerID, State: model.TripAllocated}
		if s.Self != nil {
			s.Trip.Start = *s.Self
		}
		s.StatusText = onTheWayText(s.Self, v)
	}
	for _, v := range snap.Visible {
		if !v.Engaged() || s.isAssigned(v.ID) {
			continue
		}
		s.Tracked[v.ID] = v
	}
	if role == model.RoleOperator {
		for _, t := range snap.PendingTrips {
			t.State = model.TripRequested
			s.Pending[t.ID] = t
		}
	}
	return s, nil
}

// Phase derives the passenger phase from the trip state.
func (s State) Phase() Phase {
	switch s.Trip.State {
	case model.TripRequested:
		return PhaseRequested
	case model.TripAllocated:
		return PhaseAllocated
	case model.TripCancelled:
		return PhaseCancelled
	default:
		return PhaseIdle
	}
}

func (s State) isAssigned(id model.ID) bool {
	return s.Assigned != nil && s.Assigned.ID == id
}

// clone returns a deep copy so Reduce never mutates its input.
func (s State) clone() State {
	c := s
	if s.Self != nil {
		self := *s.Self
		c.Self = &self
	}
	if s.Assigned != nil {
		v := *s.Assigned
		c.Assigned = &v
	}
	c.Tracked = make(map[model.ID]model.Vehicle, len(s.Tracked))
	for k, v := range s.Tracked {
		c.Tracked[k] = v
	}
	c.Pending = make(map[model.ID]model.Trip, len(s.Pending))
	for k, v := range s.Pending {
		c.Pending[k] = v
	}
	c.Allocated = make(map[model.ID]model.ID, len(s.Allocated))
	for k, v := range s.Allocated {
		c.Allocated[k] = v
	}
	c.Inflight.Allocate = make(map[model.ID]bool, len(s.Inflight.Allocate))
	for k, v := range s.Inflight.Allocate {
		c.Inflight.Allocate[k] = v
	}
	return c
}

// CheckInvariants reports a violation of the state invariants.
func (s State) CheckInvariants() error {
	if s.Assigned != nil {
		if _, ok := s.Tracked[s.Assigned.ID]; ok {
			return fmt.Errorf("assigned vehicle %s is also tracked", s.Assigned.ID)
		}
		if s.Trip.State != model.TripAllocated {
			return fmt.Errorf("assigned vehicle %s without allocated trip", s.Assigned.ID)
		}
	}
	if s.Trip.State == model.TripAllocated && s.Assigned == nil {
		return fmt.Errorf("allocated trip %s without vehicle", s.Trip.ID)
	}
	for id, v := range s.Tracked {
		if !v.Engaged() {
			return fmt.Errorf("tracked vehicle %s is %s", id, v.Status)
		}
	}
	return nil
}
