// Package httpserver runs the read-side HTTP endpoints: Prometheus metrics,
// the render model, the GeoJSON map and the websocket relay.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kilianp07/dispatchmap/infra/logger"
)

// Config sets the listen address. An empty Addr disables the server.
type Config struct {
	Addr            string        `json:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	// JournalToken protects /api/journal when set.
	JournalToken string `json:"journal_token"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Server serves /metrics plus any registered handlers on a dedicated mux.
type Server struct {
	cfg Config
	mux *http.ServeMux
	log logger.Logger
}

// New returns a server exposing metrics from g; nil uses the default
// gatherer.
func New(cfg Config, g prometheus.Gatherer) *Server {
	cfg.SetDefaults()
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{cfg: cfg, mux: mux, log: logger.New("http")}
}

// Handle registers h for pattern. It must be called before Run.
func (s *Server) Handle(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

// Handler returns the mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Run listens until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Requests are traced with the
// global tracer provider.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	h := otelhttp.NewHandler(s.mux, "dispatchmap.http",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" && r.URL.Path != "/healthz" }))
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http server shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("http server listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
