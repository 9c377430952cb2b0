package simulator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

type published struct {
	topic   string
	payload []byte
}

type stubPublisher struct {
	mu   sync.Mutex
	pubs []published
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pubs = append(p.pubs, published{topic: topic, payload: payload})
	return nil
}

func (p *stubPublisher) Topic(kind string) string { return "sim/" + kind }

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pubs)
}

func TestTickPublishesLocationUpdates(t *testing.T) {
	pub := &stubPublisher{}
	sim, err := New(Config{Cabs: 3, Seed: 42}, pub, nil)
	require.NoError(t, err)
	require.NoError(t, sim.Tick(context.Background()))

	require.Len(t, pub.pubs, 3)
	seen := map[model.ID]bool{}
	for _, p := range pub.pubs {
		assert.Equal(t, "sim/location_update", p.topic)
		m, err := events.Decode(events.KindLocationUpdate, p.payload)
		require.NoError(t, err)
		lu, ok := m.(events.LocationUpdate)
		require.True(t, ok, "got %T", m)
		assert.True(t, lu.Position.Valid())
		seen[lu.VehicleID] = true
	}
	assert.Equal(t, map[model.ID]bool{"1": true, "2": true, "3": true}, seen)
}

func TestTickJoinsPublishErrors(t *testing.T) {
	boom := errors.New("broker down")
	pub := &stubPublisher{err: boom}
	sim, err := New(Config{Cabs: 2, Seed: 1}, pub, nil)
	require.NoError(t, err)
	err = sim.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "cab 1")
	assert.Contains(t, err.Error(), "cab 2")
}

func TestRunStopsOnCancel(t *testing.T) {
	pub := &stubPublisher{}
	sim, err := New(Config{Cabs: 1, Interval: 10 * time.Millisecond, Seed: 1}, pub, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()
	require.Eventually(t, func() bool { return pub.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestProfileFileDrivesStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	all := `{"0":1,"1":1,"2":1,"3":1,"4":1,"5":1,"6":1,"7":1,"8":1,"9":1,"10":1,"11":1,"12":1,"13":1,"14":1,"15":1,"16":1,"17":1,"18":1,"19":1,"20":1,"21":1,"22":1,"23":1}`
	require.NoError(t, os.WriteFile(path, []byte(all), 0o644))
	sim, err := New(Config{Cabs: 20, ProfileFile: path, OnTripRatio: 0.01, Seed: 5}, &stubPublisher{}, nil)
	require.NoError(t, err)
	for _, c := range sim.Cabs() {
		assert.Equal(t, model.StatusOnTrip, c.Status)
	}

	_, err = New(Config{ProfileFile: filepath.Join(t.TempDir(), "missing.json")}, &stubPublisher{}, nil)
	assert.Error(t, err)
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, DefaultBase, c.Base)
	assert.Equal(t, 10, c.Cabs)
	assert.Equal(t, "dispatchmap-simulator", c.MQTT.ClientID)
	assert.NoError(t, c.Validate())

	c.OnTripRatio = 2
	assert.Error(t, c.Validate())

	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}
