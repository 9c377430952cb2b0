package dispatch

import (
	"sort"

	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

// Marker and line ids shared by every surface.
const (
	SelfMarkerID = "self"
	ConnectorID  = "connector"
)

// VehicleMarkerID is the marker id of a cab.
func VehicleMarkerID(id model.ID) string { return "vehicle:" + string(id) }

// TripMarkerID is the marker id of a pending trip.
func TripMarkerID(id model.ID) string { return "trip:" + string(id) }

// RenderModel is the derived view of a State. It is recomputed from scratch
// for every state and never mutated.
type RenderModel struct {
	Role        model.Role      `json:"role"`
	Phase       Phase           `json:"phase"`
	TripID      model.ID        `json:"trip_id,omitempty"`
	CancelledID model.ID        `json:"cancelled_trip_id,omitempty"`
	Self        *render.Marker  `json:"self,omitempty"`
	Assigned    *render.Marker  `json:"assigned,omitempty"`
	Connector   *render.Line    `json:"connector,omitempty"`
	Others      []render.Marker `json:"others"`
	Trips       []render.Marker `json:"trips,omitempty"`
	StatusText  string          `json:"status"`
	Affordances Affordances     `json:"affordances"`
}

// Render projects s.
func Render(s State) RenderModel {
	rm := RenderModel{
		Role:        s.Role,
		Phase:       s.Phase(),
		TripID:      s.Trip.ID,
		CancelledID: s.CancelledTripID,
		StatusText:  s.StatusText,
		Affordances: affordancesOf(s),
		Others:      []render.Marker{},
	}
	if s.Self != nil {
		rm.Self = &render.Marker{ID: SelfMarkerID, Position: *s.Self, Style: render.StyleSelf, Label: "My Location"}
	}
	if s.Assigned != nil {
		rm.Assigned = &render.Marker{
			ID:       VehicleMarkerID(s.Assigned.ID),
			Position: s.Assigned.Position,
			Style:    render.StyleAssigned,
			Label:    "My Cab " + string(s.Assigned.ID),
		}
		if s.Self != nil {
			rm.Connector = &render.Line{ID: ConnectorID, From: *s.Self, To: s.Assigned.Position}
		}
	}
	ids := make([]model.ID, 0, len(s.Tracked))
	for id := range s.Tracked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		v := s.Tracked[id]
		style := render.StyleOnTrip
		if _, ok := s.Allocated[id]; ok {
			style = render.StyleAllocated
		}
		rm.Others = append(rm.Others, render.Marker{ID: VehicleMarkerID(id), Position: v.Position, Style: style, Label: "Cab " + string(id)})
	}
	if s.Role == model.RoleOperator {
		tids := make([]model.ID, 0, len(s.Pending))
		for id := range s.Pending {
			tids = append(tids, id)
		}
		sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
		for _, id := range tids {
			t := s.Pending[id]
			rm.Trips = append(rm.Trips, render.Marker{ID: TripMarkerID(id), Position: t.Start, Style: render.StylePendingTrip, Label: "Trip " + string(id)})
		}
	}
	return rm
}

// Scene flattens the model into what a surface draws.
func (rm RenderModel) Scene() render.Scene {
	sc := render.Scene{Status: rm.StatusText}
	if rm.Self != nil {
		sc.Markers = append(sc.Markers, *rm.Self)
	}
	if rm.Assigned != nil {
		sc.Markers = append(sc.Markers, *rm.Assigned)
	}
	sc.Markers = append(sc.Markers, rm.Others...)
	sc.Markers = append(sc.Markers, rm.Trips...)
	if rm.Connector != nil {
		sc.Lines = append(sc.Lines, *rm.Connector)
	}
	return sc
}

// OtherMarker returns the tracked marker for vehicle id.
func (rm RenderModel) OtherMarker(id model.ID) (render.Marker, bool) {
	want := VehicleMarkerID(id)
	for _, m := range rm.Others {
		if m.ID == want {
			return m, true
		}
	}
	return render.Marker{}, false
}
