package dispatch

import (
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

// Affordances are the user actions the UI should offer. Callers must only
// post an intent when Allows returns true: this is what keeps every command
// at most once in flight per target.
type Affordances struct {
	RequestVisible        bool   `json:"request_visible"`
	RequestEnabled        bool   `json:"request_enabled"`
	ReRequestVisible      bool   `json:"re_request_visible"`
	ReRequestEnabled      bool   `json:"re_request_enabled"`
	UpdateLocationEnabled bool   `json:"update_location_enabled"`
	FinishVisible         bool   `json:"finish_visible"`
	FinishEnabled         bool   `json:"finish_enabled"`
	FinishLabel           string `json:"finish_label,omitempty"`
	// Allocate maps pending trip ids to whether allocation may be requested.
	Allocate map[model.ID]bool `json:"allocate,omitempty"`
}

func affordancesOf(s State) Affordances {
	var a Affordances
	switch s.Role {
	case model.RolePassenger:
		allocated := s.Trip.State == model.TripAllocated
		a.RequestVisible = !allocated
		a.RequestEnabled = a.RequestVisible && !s.Inflight.Request && s.Self != nil &&
			s.Trip.State != model.TripRequested
		a.ReRequestVisible = s.Trip.State == model.TripCancelled && !s.CancelledTripID.Empty()
		a.ReRequestEnabled = a.ReRequestVisible && !s.Inflight.ReRequest
		a.UpdateLocationEnabled = s.Self != nil && !s.Inflight.Update
		a.FinishVisible = allocated
		a.FinishEnabled = allocated && !s.Inflight.Finish
		if a.FinishVisible {
			a.FinishLabel = FinishLabel
			if s.Inflight.Finish {
				a.FinishLabel = FinishingLabel
			}
		}
	case model.RoleOperator:
		a.UpdateLocationEnabled = s.Self != nil && !s.Inflight.Update
		a.Allocate = make(map[model.ID]bool, len(s.Pending))
		for id := range s.Pending {
			a.Allocate[id] = !s.Inflight.Allocate[id]
		}
	}
	return a
}

// Allows reports whether the intent m may be posted now. Non-intent
// messages are always allowed.
func (a Affordances) Allows(m events.Message) bool {
	switch i := m.(type) {
	case events.RequestTrip:
		return a.RequestEnabled
	case events.ReRequestTrip:
		return a.ReRequestEnabled
	case events.UpdateLocation:
		return a.UpdateLocationEnabled
	case events.FinishTrip:
		return a.FinishEnabled
	case events.AllocateVehicle:
		return a.Allocate[i.TripID]
	default:
		return true
	}
}
