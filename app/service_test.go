package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/config"
	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/factory"
	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/session"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	self := model.LatLon{Lat: 26.24, Lon: 73.02}
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	cfg := &config.Config{
		Session: config.SessionConfig{Snapshot: &session.Snapshot{ViewerID: "u-1", Role: "employee", Self: &self, CSRFToken: "csrf"}},
		Viewer:  config.ViewerConfig{Surfaces: []factory.ModuleConfig{{Type: "geojson"}}},
		Channel: factory.ModuleConfig{Type: "socketio", Conf: map[string]any{"url": dead.URL, "min_backoff": "50ms"}},
		Metrics: coremetrics.Config{Sinks: []factory.ModuleConfig{{Type: "nop"}}},
		Journal: config.JournalConfig{Backend: "none"},
	}
	cfg.Gateway.BaseURL = backend
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceRunsControllerAgainstBackend(t *testing.T) {
	var requests atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csrf", r.Header.Get("X-CSRF-Token"))
		switch r.URL.Path {
		case "/employee/request-trip":
			requests.Add(1)
			_, _ = w.Write([]byte(`{"message":"Trip requested","trip_id":5}`))
		default:
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		}
	}))
	defer backend.Close()

	var out bytes.Buffer
	svc, err := New(context.Background(), testConfig(t, backend.URL), Options{
		Version: "test",
		Input:   strings.NewReader("request\nrequest\n"),
		Output:  &out,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc.Engine.Current().Phase == dispatch.PhaseRequested
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.ID("5"), svc.Engine.Current().TripID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
	require.NoError(t, svc.Close())
	assert.Equal(t, int32(1), requests.Load(), "second request must be refused while the first is in flight")
	assert.Contains(t, out.String(), "action not available")
}

func TestServiceRequiresSession(t *testing.T) {
	cfg := testConfig(t, "http://localhost:5000")
	cfg.Session = config.SessionConfig{}
	_, err := New(context.Background(), cfg, Options{})
	assert.ErrorIs(t, err, config.ErrNoSession)
}
