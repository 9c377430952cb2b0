// Package app wires the configured components into a running client.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	apijournal "github.com/kilianp07/dispatchmap/api/journal"
	apistate "github.com/kilianp07/dispatchmap/api/state"
	apivehicles "github.com/kilianp07/dispatchmap/api/vehicles"
	"github.com/kilianp07/dispatchmap/config"
	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/journal"
	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
	coremon "github.com/kilianp07/dispatchmap/core/monitoring"
	"github.com/kilianp07/dispatchmap/infra/channel"
	"github.com/kilianp07/dispatchmap/infra/gateway"
	"github.com/kilianp07/dispatchmap/infra/httpserver"
	"github.com/kilianp07/dispatchmap/infra/logger"
	"github.com/kilianp07/dispatchmap/infra/metrics"
	"github.com/kilianp07/dispatchmap/infra/monitoring"
	"github.com/kilianp07/dispatchmap/infra/profiling"
	"github.com/kilianp07/dispatchmap/infra/surface"
	"github.com/kilianp07/dispatchmap/infra/tracing"
)

// Options are per-run settings that do not belong in the config file.
type Options struct {
	Version string
	// Input feeds the console controller; nil disables it.
	Input  io.Reader
	Output io.Writer
}

// Service orchestrates the engine, the event channel and the surfaces.
type Service struct {
	Engine *engine.Engine

	cfg      *config.Config
	opts     Options
	log      logger.Logger
	channel  channel.Channel
	sink     coremetrics.Sink
	surfaces []surface.Built
	http     *httpserver.Server

	closers []func(context.Context) error
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Service, error) {
	s := &Service{cfg: cfg, opts: opts, log: logger.New("service")}
	if err := s.setup(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) onClose(f func(context.Context) error) { s.closers = append(s.closers, f) }

//nolint:gocyclo
func (s *Service) setup(ctx context.Context) error {
	cfg := s.cfg
	// Sink types are registered by infra/metrics, which config cannot see.
	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry, s.opts.Version)
	if err != nil {
		return err
	}
	coremon.Init(mon)
	s.onClose(func(context.Context) error { coremon.Flush(2 * time.Second); return nil })

	shutdown, err := tracing.InitTracing(ctx, cfg.Tracing, s.opts.Version)
	if err != nil {
		return err
	}
	s.onClose(shutdown)

	stopProfiling, err := profiling.InitProfiling(cfg.Profiling, s.opts.Version)
	if err != nil {
		return err
	}
	s.onClose(func(context.Context) error { stopProfiling(); return nil })

	snap, err := cfg.Session.Load()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	initial, err := dispatch.New(snap, cfg.Engine.Options())
	if err != nil {
		return fmt.Errorf("initial state: %w", err)
	}

	gwCfg := cfg.Gateway
	if gwCfg.CSRFToken == "" {
		gwCfg.CSRFToken = snap.CSRFToken
	}
	gw, err := gateway.New(gwCfg)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	eng, err := engine.New(initial, gw, cfg.Engine.Engine(), logger.New("engine"))
	if err != nil {
		return err
	}
	s.Engine = eng
	s.onClose(func(context.Context) error { return eng.Close() })

	store, err := journal.Open(cfg.Journal.Options())
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if err := eng.SetJournal(ctx, store); err != nil {
		_ = store.Close()
		return err
	}

	for _, mc := range cfg.Viewer.Surfaces {
		b, err := surface.New(mc)
		if err != nil {
			return fmt.Errorf("surface: %w", err)
		}
		eng.AddSurface(b)
		s.surfaces = append(s.surfaces, b)
	}

	s.channel, err = channel.New(cfg.Channel, initial.Role)
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}

	s.sink, err = coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := httpserver.New(cfg.HTTP, nil)
		srv.Handle("GET /api/state", apistate.NewHandler(eng))
		srv.Handle("GET /api/vehicles", apivehicles.NewHandler(eng))
		srv.Handle("GET /api/journal", apijournal.NewHandler(store, cfg.HTTP.JournalToken))
		for _, b := range s.surfaces {
			if b.Handler != nil {
				srv.Handle(b.Pattern, b.Handler)
			}
		}
		s.http = srv
	}
	return nil
}

// Run starts every component and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collected := metrics.StartEventCollector(ctx, s.Engine.Bus(), s.sink)
	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	start := func(name string, f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer coremon.Recover()
			if err := f(ctx); err != nil {
				s.log.Errorf("%s: %v", name, err)
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	start("engine", s.Engine.Run)
	start("channel", func(ctx context.Context) error {
		return s.channel.Run(ctx, channel.Poster(s.Engine.Post))
	})
	if s.http != nil {
		start("http", s.http.Run)
	}
	if s.opts.Input != nil {
		ctl := NewController(s.Engine, s.opts.Output, logger.New("controller"))
		start("controller", func(ctx context.Context) error {
			if err := ctl.Run(ctx, s.opts.Input); err != nil {
				return err
			}
			// EOF on input leaves the client running.
			<-ctx.Done()
			return nil
		})
	}
	s.log.Infof("dispatchmap %s running", s.opts.Version)

	<-ctx.Done()
	wg.Wait()
	<-collected
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases resources held by the service in reverse setup order.
func (s *Service) Close() error {
	for _, b := range s.surfaces {
		b.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
