package surface

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

var (
	_ render.Surface = (*Console)(nil)
	_ render.Surface = (*GeoJSON)(nil)
	_ render.Surface = (*Relay)(nil)
)

func TestConsolePrintsStatus(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(nil, &buf)
	c.Upsert("self", model.LatLon{Lat: 1, Lon: 2}, render.StyleSelf)
	c.SetStatusText("Trip Requested (ID: 5). Waiting for allocation.")
	assert.Equal(t, "» Trip Requested (ID: 5). Waiting for allocation.\n", buf.String())
}

func TestGeoJSONTracksScene(t *testing.T) {
	g := NewGeoJSON()
	g.Upsert("vehicle:9", model.LatLon{Lat: 26.25, Lon: 73.03}, render.StyleAssigned)
	g.Upsert("self", model.LatLon{Lat: 26.24, Lon: 73.02}, render.StyleSelf)
	g.DrawLine("connector", model.LatLon{Lat: 26.24, Lon: 73.02}, model.LatLon{Lat: 26.25, Lon: 73.03})
	g.SetStatusText("Cab 9 is on the way!")

	fc := g.FeatureCollection()
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "connector", fc.Features[0].ID)
	assert.Equal(t, orb.LineString{{73.02, 26.24}, {73.03, 26.25}}, fc.Features[0].Geometry)
	assert.Equal(t, "self", fc.Features[1].ID)
	assert.Equal(t, orb.Point{73.03, 26.25}, fc.Features[2].Geometry)
	assert.Equal(t, "assigned", fc.Features[2].Properties["style"])

	g.Remove("connector")
	g.Remove("vehicle:9")
	assert.Len(t, g.FeatureCollection().Features, 1)
}

func TestGeoJSONServeHTTP(t *testing.T) {
	g := NewGeoJSON()
	g.Upsert("self", model.LatLon{Lat: 26.24, Lon: 73.02}, render.StyleSelf)
	g.SetStatusText("ready")

	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/map.geojson", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "ready", fc.ExtraMembers["status"])

	rec = httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/map.geojson", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestRelaySnapshotThenOps(t *testing.T) {
	r := NewRelay(nil)
	r.Upsert("self", model.LatLon{Lat: 1, Lon: 2}, render.StyleSelf)
	r.SetStatusText("hello")
	srv := httptest.NewServer(r)
	defer srv.Close()
	defer r.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readFrame(t, conn)
	assert.Equal(t, "snapshot", snap.Type)
	assert.NotEmpty(t, snap.ClientID)
	require.NotNil(t, snap.Scene)
	assert.Equal(t, "hello", snap.Scene.Status)
	assert.Equal(t, []render.Marker{{ID: "self", Position: model.LatLon{Lat: 1, Lon: 2}, Style: render.StyleSelf}}, snap.Scene.Markers)
	assert.Equal(t, 1, r.Clients())

	r.Remove("self")
	op := readFrame(t, conn)
	assert.Equal(t, "op", op.Type)
	require.NotNil(t, op.Op)
	assert.Equal(t, render.Op{Kind: render.OpRemove, ID: "self"}, *op.Op)

	r.DrawLine("connector", model.LatLon{Lat: 1, Lon: 1}, model.LatLon{Lat: 2, Lon: 2})
	op = readFrame(t, conn)
	assert.Equal(t, render.OpLine, op.Op.Kind)
	assert.Equal(t, model.LatLon{Lat: 2, Lon: 2}, op.Op.To)
}

func TestRelayDropsClientOnClose(t *testing.T) {
	r := NewRelay(nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	readFrame(t, conn)
	require.NoError(t, conn.Close())

	deadline := time.Now().Add(3 * time.Second)
	for r.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRegistryBuildsSurfaces(t *testing.T) {
	assert.Equal(t, []string{"console", "geojson", "relay"}, Kinds())

	b, err := New(factory.ModuleConfig{Type: "geojson"})
	require.NoError(t, err)
	assert.Equal(t, "GET /map.geojson", b.Pattern)
	_, ok := b.Surface.(*GeoJSON)
	assert.True(t, ok)

	b, err = New(factory.ModuleConfig{Type: "relay", Conf: map[string]any{"path": "/live"}})
	require.NoError(t, err)
	assert.Equal(t, "GET /live", b.Pattern)
	b.Close()

	b, err = New(factory.ModuleConfig{Type: "console", Conf: map[string]any{"quiet": true}})
	require.NoError(t, err)
	assert.Nil(t, b.Handler)

	_, err = New(factory.ModuleConfig{Type: "geojson", Conf: map[string]any{"path": "map"}})
	assert.Error(t, err)
	_, err = New(factory.ModuleConfig{Type: "leaflet"})
	assert.Error(t, err)
}
