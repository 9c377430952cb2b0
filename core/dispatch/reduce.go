package dispatch

import (
	"fmt"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

// Reduce applies one message to s and returns the new state together with
// the commands to execute. s is never modified. Messages that do not apply
// to the viewer's role or phase leave the state unchanged.
//
// Whether a location update concerns the assigned cab is decided against
// the assigned id at the time the update is reduced; messages are never
// buffered or reordered.
func Reduce(s State, msg events.Message) (State, []Command) {
	n := s.clone()
	switch m := msg.(type) {
	case events.LocationUpdate:
		n.applyLocation(m)
	case events.TripAllocated:
		n.applyAllocated(m)
	case events.NewTripRequest:
		if n.Role == model.RoleOperator && !m.Trip.ID.Empty() {
			t := m.Trip
			t.State = model.TripRequested
			n.Pending[t.ID] = t
			n.StatusText = fmt.Sprintf(TextNewTripRequestFmt, t.ID)
		}
	case events.Connected:
		if cmd, ok := n.resync(m); ok {
			return n, []Command{cmd}
		}
	case events.Disconnected, events.Unknown:
	case events.PickLocation:
		if !m.Position.Valid() {
			n.StatusText = TextInvalidLocation
			break
		}
		pos := m.Position
		n.Self = &pos
	case events.RequestTrip:
		return n.requestTrip()
	case events.RequestTripResult:
		n.requestTripResult(m)
	case events.ReRequestTrip:
		if n.Role != model.RolePassenger {
			n.StatusText = TextPassengerOnly
			break
		}
		if n.CancelledTripID.Empty() {
			n.StatusText = TextNoCancelledTrip
			break
		}
		n.Inflight.ReRequest = true
		n.StatusText = TextReRequesting
		return n, []Command{{Op: OpReRequestTrip, TripID: n.CancelledTripID}}
	case events.ReRequestTripResult:
		n.reRequestResult(m)
	case events.UpdateLocation:
		if n.Self == nil {
			n.StatusText = TextPickLocationFirst
			break
		}
		n.Inflight.Update = true
		return n, []Command{{Op: OpUpdateLocation, Position: *n.Self}}
	case events.UpdateLocationResult:
		n.Inflight.Update = false
		if m.Err != nil {
			n.StatusText = failureText(m.Err, defaultUpdateFailure, TextUpdateUnexpected)
			break
		}
		if n.Self == nil {
			pos := m.Position
			n.Self = &pos
		}
		n.StatusText = TextLocationUpdated
	case events.AllocateVehicle:
		return n.allocate(m)
	case events.AllocateResult:
		if m.Err != nil {
			delete(n.Inflight.Allocate, m.TripID)
			n.StatusText = failureText(m.Err, defaultAllocateFailure, TextUnexpected)
			break
		}
		if _, pending := n.Pending[m.TripID]; pending {
			n.StatusText = fmt.Sprintf(TextAllocationSentFmt, m.TripID)
		}
	case events.FinishTrip:
		if n.Trip.State != model.TripAllocated || n.Trip.ID.Empty() {
			n.StatusText = TextNoActiveTrip
			break
		}
		n.Inflight.Finish = true
		return n, []Command{{Op: OpFinishTrip, TripID: n.Trip.ID}}
	case events.FinishTripResult:
		n.Inflight.Finish = false
		if m.Err != nil {
			n.StatusText = failureText(m.Err, defaultFinishFailure, TextUnexpected)
			break
		}
		n.Trip = model.Trip{}
		n.Assigned = nil
		n.StatusText = TextTripFinished
	case events.NearbyResult:
		if m.Err == nil {
			n.replaceTracked(m.Vehicles)
		}
	}
	return n, nil
}

// applyLocation needs a valid position only to place a marker. A vehicle
// leaving OnTrip is dropped whatever coordinates come with the update.
func (s *State) applyLocation(m events.LocationUpdate) {
	valid := m.Position.Valid()
	if s.isAssigned(m.VehicleID) {
		if valid {
			s.Assigned.Position = m.Position
		}
		s.Assigned.Status = m.Status
		return
	}
	if m.Status == model.StatusOnTrip {
		if valid {
			s.Tracked[m.VehicleID] = model.Vehicle{ID: m.VehicleID, Position: m.Position, Status: m.Status}
		}
		return
	}
	delete(s.Tracked, m.VehicleID)
	delete(s.Allocated, m.VehicleID)
}

func (s *State) applyAllocated(m events.TripAllocated) {
	switch s.Role {
	case model.RoleOperator:
		delete(s.Pending, m.TripID)
		delete(s.Inflight.Allocate, m.TripID)
		s.Tracked[m.VehicleID] = model.Vehicle{ID: m.VehicleID, Position: m.VehiclePosition, Status: model.StatusOnTrip}
		s.Allocated[m.VehicleID] = m.TripID
		s.StatusText = fmt.Sprintf(TextAllocatedFmt, m.VehicleID, m.TripID)
	case model.RolePassenger:
		if m.EmployeeID != s.ViewerID {
			return
		}
		v := model.Vehicle{ID: m.VehicleID, Position: m.VehiclePosition, Status: model.StatusOnTrip}
		s.Assigned = &v
		delete(s.Tracked, v.ID)
		start := s.Trip.Start
		if s.Trip.ID != m.TripID && s.Self != nil {
			start = *s.Self
		}
		s.Trip = model.Trip{ID: m.TripID, RequesterID: s.ViewerID, Start: start, State: model.TripAllocated}
		s.CancelledTripID = ""
		s.StatusText = onTheWayText(s.Self, v)
	}
}

func (s State) requestTrip() (State, []Command) {
	switch {
	case s.Role != model.RolePassenger:
		s.StatusText = TextPassengerOnly
		return s, nil
	case s.Self == nil:
		s.StatusText = TextNoLocation
		return s, nil
	case s.Trip.State == model.TripRequested || s.Trip.State == model.TripAllocated:
		s.StatusText = TextTripActive
		return s, nil
	}
	s.Inflight.Request = true
	s.StatusText = TextRequesting
	return s, []Command{{Op: OpRequestTrip, Position: *s.Self}}
}

func (s *State) requestTripResult(m events.RequestTripResult) {
	s.Inflight.Request = false
	if m.Err != nil {
		s.StatusText = failureText(m.Err, defaultRequestFailure, TextUnexpected)
		if m.Err.Cancelled() && !m.Err.TripID.Empty() && s.Trip.State != model.TripAllocated {
			s.Trip = model.Trip{ID: m.Err.TripID, RequesterID: s.ViewerID, State: model.TripCancelled}
			if s.Self != nil {
				s.Trip.Start = *s.Self
			}
			s.CancelledTripID = m.Err.TripID
		}
		return
	}
	s.markRequested(m.TripID)
}

func (s *State) reRequestResult(m events.ReRequestTripResult) {
	s.Inflight.ReRequest = false
	if m.Err != nil {
		s.StatusText = failureText(m.Err, defaultRequestFailure, TextUnexpected)
		return
	}
	s.markRequested(m.TripID)
}

// markRequested records an accepted request unless the allocation event for
// the same trip already arrived.
func (s *State) markRequested(id model.ID) {
	if s.Trip.State == model.TripAllocated && s.Trip.ID == id {
		return
	}
	t := model.Trip{ID: id, RequesterID: s.ViewerID, State: model.TripRequested}
	if s.Self != nil {
		t.Start = *s.Self
	}
	s.Trip = t
	s.CancelledTripID = ""
	s.StatusText = fmt.Sprintf(TextRequestedFmt, id)
}

func (s State) allocate(m events.AllocateVehicle) (State, []Command) {
	if s.Role != model.RoleOperator {
		s.StatusText = TextOperatorOnly
		return s, nil
	}
	if _, ok := s.Pending[m.TripID]; !ok {
		s.StatusText = fmt.Sprintf(TextTripNotPendingFmt, m.TripID)
		return s, nil
	}
	s.Inflight.Allocate[m.TripID] = true
	s.StatusText = fmt.Sprintf(TextAllocatingFmt, m.TripID)
	return s, []Command{{Op: OpAllocate, TripID: m.TripID}}
}

func (s *State) replaceTracked(vs []model.Vehicle) {
	tracked := make(map[model.ID]model.Vehicle, len(vs))
	for _, v := range vs {
		if !v.Engaged() || s.isAssigned(v.ID) || !v.Position.Valid() {
			continue
		}
		tracked[v.ID] = v
	}
	for id := range s.Allocated {
		if _, ok := tracked[id]; !ok {
			delete(s.Allocated, id)
		}
	}
	s.Tracked = tracked
}

// resync builds the nearby query sent after a reconnect. Viewers with a
// location query around it; an operator without one asks for the whole
// fleet.
func (s *State) resync(m events.Connected) (Command, bool) {
	if !m.Reconnect || !s.Opts.ResyncOnReconnect {
		return Command{}, false
	}
	if s.Self != nil {
		return Command{Op: OpFetchNearby, Position: *s.Self, RadiusKm: s.Opts.NearbyRadiusKm}, true
	}
	if s.Role == model.RoleOperator {
		return Command{Op: OpFetchNearby, Fleet: true}, true
	}
	return Command{}, false
}
