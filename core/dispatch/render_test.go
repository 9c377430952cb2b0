package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

func TestRenderOthersSorted(t *testing.T) {
	s := passenger(t, nil)
	s, _ = apply(t, s,
		loc("c", 1, 1, model.StatusOnTrip),
		loc("a", 1, 1, model.StatusOnTrip),
		loc("b", 1, 1, model.StatusOnTrip),
	)
	rm := Render(s)
	require.Len(t, rm.Others, 3)
	assert.Equal(t, []string{"vehicle:a", "vehicle:b", "vehicle:c"}, []string{rm.Others[0].ID, rm.Others[1].ID, rm.Others[2].ID})
	assert.Nil(t, rm.Self)
	assert.Nil(t, rm.Connector)
}

func TestRenderConnectorNeedsSelf(t *testing.T) {
	s := passenger(t, nil)
	s, _ = apply(t, s, allocated(s, "5", "9", 1, 1))
	rm := Render(s)
	require.NotNil(t, rm.Assigned)
	assert.Nil(t, rm.Connector)
	assert.Equal(t, "Cab 9 is on the way!", rm.StatusText)

	s, _ = apply(t, s, events.PickLocation{Position: model.LatLon{Lat: 2, Lon: 2}})
	rm = Render(s)
	require.NotNil(t, rm.Connector)
	assert.Equal(t, model.LatLon{Lat: 2, Lon: 2}, rm.Connector.From)
	assert.Equal(t, model.LatLon{Lat: 1, Lon: 1}, rm.Connector.To)
}

func TestSceneIncludesEverything(t *testing.T) {
	s := passenger(t, at(1, 1))
	s, _ = apply(t, s, loc("3", 2, 2, model.StatusOnTrip), allocated(s, "5", "9", 1, 2))
	sc := Render(s).Scene()
	ids := map[string]render.Style{}
	for _, m := range sc.Markers {
		ids[m.ID] = m.Style
	}
	assert.Equal(t, map[string]render.Style{
		SelfMarkerID:         render.StyleSelf,
		VehicleMarkerID("9"): render.StyleAssigned,
		VehicleMarkerID("3"): render.StyleOnTrip,
	}, ids)
	require.Len(t, sc.Lines, 1)
	assert.Equal(t, ConnectorID, sc.Lines[0].ID)
}

func TestOperatorSceneShowsPendingTrips(t *testing.T) {
	s := operator(t, model.Trip{ID: "1", Start: model.LatLon{Lat: 26.1, Lon: 73.1}})
	sc := Render(s).Scene()
	require.Len(t, sc.Markers, 1)
	assert.Equal(t, render.StylePendingTrip, sc.Markers[0].Style)
	assert.Equal(t, TripMarkerID("1"), sc.Markers[0].ID)
}

func TestAffordancesAllows(t *testing.T) {
	a := Affordances{RequestEnabled: true, Allocate: map[model.ID]bool{"1": true}}
	assert.True(t, a.Allows(events.RequestTrip{}))
	assert.False(t, a.Allows(events.FinishTrip{}))
	assert.True(t, a.Allows(events.AllocateVehicle{TripID: "1"}))
	assert.False(t, a.Allows(events.AllocateVehicle{TripID: "2"}))
	assert.True(t, a.Allows(events.PickLocation{}))
}
