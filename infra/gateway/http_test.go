package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/auth"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

func newGateway(t *testing.T, h http.HandlerFunc, mutate ...func(*Config)) *HTTP {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := Config{BaseURL: srv.URL, CSRFToken: "csrf", AccessToken: "jwt"}
	for _, m := range mutate {
		m(&cfg)
	}
	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func commandError(t *testing.T, err error) *events.CommandError {
	t.Helper()
	var ce *events.CommandError
	require.True(t, errors.As(err, &ce), "want *events.CommandError, got %T: %v", err, err)
	return ce
}

func TestRequestTripSendsCSRFAndPosition(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/employee/request-trip", r.URL.Path)
		assert.Equal(t, "csrf", r.Header.Get("X-CSRF-Token"))
		c, err := r.Cookie("csrf_access_token")
		if assert.NoError(t, err) {
			assert.Equal(t, "csrf", c.Value)
		}
		c, err = r.Cookie("access_token_cookie")
		if assert.NoError(t, err) {
			assert.Equal(t, "jwt", c.Value)
		}
		var body map[string]float64
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]float64{"lat": 26.24, "lon": 73.02}, body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Trip requested","trip_id":5}`))
	})
	id, err := g.RequestTrip(context.Background(), model.LatLon{Lat: 26.24, Lon: 73.02})
	require.NoError(t, err)
	assert.Equal(t, model.ID("5"), id)
}

func TestRequestTripCancelledRejection(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"msg":"Your last trip was cancelled","status":"cancelled","trip_id":"41"}`))
	})
	_, err := g.RequestTrip(context.Background(), model.LatLon{Lat: 1, Lon: 1})
	ce := commandError(t, err)
	assert.Equal(t, events.ErrRejected, ce.Kind)
	assert.Equal(t, http.StatusBadRequest, ce.StatusCode)
	assert.Equal(t, "Your last trip was cancelled", ce.Message)
	assert.Equal(t, model.ID("41"), ce.TripID)
	assert.True(t, ce.Cancelled())
}

func TestRequestTripMissingTripID(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	_, err := g.RequestTrip(context.Background(), model.LatLon{Lat: 1, Lon: 1})
	assert.Equal(t, events.ErrUnexpected, commandError(t, err).Kind)
}

func TestNonJSONErrorIsUnexpected(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>boom</html>", http.StatusInternalServerError)
	})
	err := g.UpdateLocation(context.Background(), model.LatLon{Lat: 1, Lon: 1})
	ce := commandError(t, err)
	assert.Equal(t, events.ErrUnexpected, ce.Kind)
	assert.Equal(t, http.StatusInternalServerError, ce.StatusCode)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	g, err := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	err = g.FinishTrip(context.Background(), "5")
	assert.Equal(t, events.ErrTransport, commandError(t, err).Kind)
}

func TestReRequestAndAllocatePaths(t *testing.T) {
	var paths []string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/employee/re-request-trip/41":
			_, _ = w.Write([]byte(`{"trip_id":42}`))
		case "/admin/trips/7/allocate":
			_, _ = w.Write([]byte(`{"message":"Cab 3 allocated to trip 7","cab_id":3,"trip_id":7}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"not found"}`))
		}
	})
	id, err := g.ReRequestTrip(context.Background(), "41")
	require.NoError(t, err)
	assert.Equal(t, model.ID("42"), id)

	cab, err := g.AllocateTrip(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, model.ID("3"), cab)
	assert.Equal(t, []string{"/employee/re-request-trip/41", "/admin/trips/7/allocate"}, paths)
}

func TestFinishTripBody(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/employee/trips/finish", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5", body["trip_id"])
		_, _ = w.Write([]byte(`{"message":"Trip completed"}`))
	})
	require.NoError(t, g.FinishTrip(context.Background(), "5"))
}

func TestNearby(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/employee/cabs/nearby", r.URL.Path)
		assert.Equal(t, "26.24", r.URL.Query().Get("lat"))
		assert.Equal(t, "73.02", r.URL.Query().Get("lon"))
		assert.Equal(t, "5", r.URL.Query().Get("radius"))
		assert.Empty(t, r.Header.Get("X-CSRF-Token"))
		_, _ = w.Write([]byte(`[
			{"id":3,"driver_name":"A","lat":26.25,"lon":73.03,"status":"on_trip","distance_meters":120.5},
			{"id":4,"status":"on_trip"}
		]`))
	})
	vs, err := g.Nearby(context.Background(), &model.LatLon{Lat: 26.24, Lon: 73.02}, 5)
	require.NoError(t, err)
	assert.Equal(t, []model.Vehicle{{ID: "3", Position: model.LatLon{Lat: 26.25, Lon: 73.03}, Status: model.StatusOnTrip}}, vs)
}

func TestNearbyFleet(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/employee/cabs/nearby", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`[{"id":7,"lat":26.2,"lon":73.0,"status":"on_trip"}]`))
	})
	vs, err := g.Nearby(context.Background(), nil, 5)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, model.ID("7"), vs[0].ID)
}

func TestOAuthRefreshOn401(t *testing.T) {
	var tokens atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		tok := "old"
		if n > 1 {
			tok = "new"
		}
		_, _ = w.Write([]byte(`{"access_token":"` + tok + `","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"Token has expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Location updated"}`))
	}, func(c *Config) {
		c.OAuth = auth.Conf{ClientID: "id", ClientSecret: "s", TokenURL: tokenSrv.URL}
	})
	require.NoError(t, g.UpdateLocation(context.Background(), model.LatLon{Lat: 1, Lon: 1}))
	assert.Equal(t, int32(2), tokens.Load())
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "/admin/trips/{id}/allocate", c.Paths.AllocateTrip)
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Error(t, c.Validate())
	c.BaseURL = "ftp://x"
	assert.Error(t, c.Validate())
	c.BaseURL = "http://localhost:5000"
	assert.NoError(t, c.Validate())
}
