package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/session"
)

type stubGateway struct {
	updates chan model.LatLon
}

func (g *stubGateway) RequestTrip(context.Context, model.LatLon) (model.ID, error) { return "5", nil }
func (g *stubGateway) ReRequestTrip(context.Context, model.ID) (model.ID, error) {
	return "6", nil
}
func (g *stubGateway) UpdateLocation(_ context.Context, pos model.LatLon) error {
	if g.updates != nil {
		g.updates <- pos
	}
	return nil
}
func (g *stubGateway) AllocateTrip(context.Context, model.ID) (model.ID, error) { return "9", nil }
func (g *stubGateway) FinishTrip(context.Context, model.ID) error               { return nil }
func (g *stubGateway) Nearby(context.Context, *model.LatLon, float64) ([]model.Vehicle, error) {
	return nil, nil
}

func startEngine(t *testing.T, snap session.Snapshot, gw engine.Gateway) *engine.Engine {
	t.Helper()
	st, err := dispatch.New(snap, dispatch.Options{})
	require.NoError(t, err)
	eng, err := engine.New(st, gw, engine.Config{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = eng.Close()
	})
	return eng
}

func TestParseIntent(t *testing.T) {
	cases := []struct {
		line string
		want events.Message
	}{
		{"pick 26.24 73.02", events.PickLocation{Position: model.LatLon{Lat: 26.24, Lon: 73.02}}},
		{"update", events.UpdateLocation{}},
		{"request", events.RequestTrip{}},
		{"rerequest", events.ReRequestTrip{}},
		{"finish", events.FinishTrip{}},
		{"allocate 7", events.AllocateVehicle{TripID: "7"}},
	}
	for _, c := range cases {
		f := strings.Fields(c.line)
		got, err := parseIntent(f[0], f[1:])
		require.NoError(t, err, c.line)
		assert.Equal(t, c.want, got, c.line)
	}
	for _, bad := range []string{"pick 1", "pick x 1", "pick 95 10", "allocate", "fly"} {
		f := strings.Fields(bad)
		_, err := parseIntent(f[0], f[1:])
		assert.Error(t, err, bad)
	}
}

func TestControllerPickThenUpdate(t *testing.T) {
	gw := &stubGateway{updates: make(chan model.LatLon, 1)}
	eng := startEngine(t, session.Snapshot{ViewerID: "u", Role: "passenger"}, gw)
	var out bytes.Buffer
	ctl := NewController(eng, &out, nil)
	ctx := context.Background()

	err := ctl.Exec(ctx, "update")
	assert.True(t, errors.Is(err, ErrNotAllowed), "update without a location must be refused: %v", err)

	require.NoError(t, ctl.Exec(ctx, "pick 26.24 73.02"))
	require.NotNil(t, eng.Current().Self)
	require.NoError(t, ctl.Exec(ctx, "update"))
	select {
	case pos := <-gw.updates:
		assert.Equal(t, model.LatLon{Lat: 26.24, Lon: 73.02}, pos)
	case <-time.After(2 * time.Second):
		t.Fatal("update not sent")
	}
}

func TestControllerOperatorAllocate(t *testing.T) {
	snap := session.Snapshot{
		ViewerID:     "admin",
		Role:         "operator",
		PendingTrips: []model.Trip{{ID: "7", RequesterID: "u", Start: model.LatLon{Lat: 26.2, Lon: 73.0}}},
	}
	eng := startEngine(t, snap, &stubGateway{})
	ctl := NewController(eng, nil, nil)
	ctx := context.Background()

	assert.ErrorIs(t, ctl.Exec(ctx, "allocate 8"), ErrNotAllowed)
	require.NoError(t, ctl.Exec(ctx, "allocate 7"))
	assert.ErrorIs(t, ctl.Exec(ctx, "allocate 7"), ErrNotAllowed, "allocate must fire once per trip")
}

func TestControllerRunPrintsStateAndErrors(t *testing.T) {
	eng := startEngine(t, session.Snapshot{ViewerID: "u", Role: "passenger"}, &stubGateway{})
	var out bytes.Buffer
	ctl := NewController(eng, &out, nil)
	require.NoError(t, ctl.Run(context.Background(), strings.NewReader("\nstate\nfly\nhelp\n")))
	s := out.String()
	assert.Contains(t, s, `"phase": "idle"`)
	assert.Contains(t, s, `error: unknown command "fly"`)
	assert.Contains(t, s, "allocate <trip>")
}
