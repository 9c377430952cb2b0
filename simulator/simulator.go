package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/infra/mqtt"
)

// Publisher sends a payload on an event topic. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Topic(kind string) string
}

// Simulator moves a fleet and publishes one location_update per cab and tick.
type Simulator struct {
	cfg     Config
	pub     Publisher
	log     logger.Logger
	rng     *rand.Rand
	cabs    []*Cab
	profile *[24]float64
	now     func() time.Time
}

// New builds a simulator publishing through pub.
func New(cfg Config, pub Publisher, log logger.Logger) (*Simulator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, errors.New("simulator: nil publisher")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		cfg: cfg,
		pub: pub,
		log: logger.OrNop(log),
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
	if cfg.ProfileFile != "" {
		data, err := os.ReadFile(cfg.ProfileFile)
		if err != nil {
			return nil, fmt.Errorf("profile file: %w", err)
		}
		prof, err := LoadOnTripProfile(data)
		if err != nil {
			return nil, fmt.Errorf("profile file: %w", err)
		}
		s.profile = &prof
	}
	s.cabs = GenerateFleet(cfg, s.onTrip(), s.rng)
	return s, nil
}

// Cabs returns the simulated fleet.
func (s *Simulator) Cabs() []*Cab { return s.cabs }

func (s *Simulator) onTrip() float64 {
	if s.profile != nil {
		return s.profile[s.now().Hour()]
	}
	return s.cfg.OnTripRatio
}

// Tick advances every cab once and publishes its position.
func (s *Simulator) Tick(ctx context.Context) error {
	ratio := s.onTrip()
	var errs []error
	for _, c := range s.cabs {
		c.Step(s.cfg.Base, s.cfg.RadiusKm, s.cfg.StepMeters, ratio, s.cfg.FlipRate, s.rng)
		kind, payload, err := events.Encode(c.Update())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.pub.Publish(ctx, s.pub.Topic(kind), payload); err != nil {
			errs = append(errs, fmt.Errorf("cab %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Run ticks every cfg.Interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	s.log.Infof("simulating %d cabs around %s every %s", len(s.cabs), s.cfg.Base, s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("simulator stopped after %d ticks", ticks)
			return nil
		case <-ticker.C:
			ticks++
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.log.Warnf("tick %d: %v", ticks, err)
			}
		}
	}
}

// Run connects to the broker in cfg.MQTT and simulates until ctx is done.
func Run(ctx context.Context, cfg Config, log logger.Logger) error {
	cli, err := mqtt.NewClient(cfg.MQTT, mqtt.Hooks{
		OnLost: func(err error) { logger.OrNop(log).Warnf("broker connection lost: %v", err) },
	})
	if err != nil {
		return err
	}
	defer cli.Disconnect()
	sim, err := New(cfg, cli, log)
	if err != nil {
		return err
	}
	return sim.Run(ctx)
}
