// Package gateway implements the command gateway over the backend's REST
// endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/dispatchmap/auth"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/core/model"
	infralogger "github.com/kilianp07/dispatchmap/infra/logger"
)

const (
	csrfHeader   = "X-CSRF-Token"
	csrfCookie   = "csrf_access_token"
	accessCookie = "access_token_cookie"
)

// Paths are the backend routes. {id} is replaced by the escaped trip id.
type Paths struct {
	RequestTrip    string `json:"request_trip"`
	ReRequestTrip  string `json:"re_request_trip"`
	UpdateLocation string `json:"update_location"`
	AllocateTrip   string `json:"allocate_trip"`
	FinishTrip     string `json:"finish_trip"`
	Nearby         string `json:"nearby"`
}

// Config configures the HTTP gateway.
type Config struct {
	BaseURL string `json:"base_url"`
	// CSRFToken overrides the token from the session snapshot.
	CSRFToken   string        `json:"csrf_token"`
	AccessToken string        `json:"access_token"`
	Timeout     time.Duration `json:"timeout"`
	Paths       Paths         `json:"paths"`
	OAuth       auth.Conf     `json:"oauth"`
}

// SetDefaults fills unset fields with the backend's routes.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	p := &c.Paths
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&p.RequestTrip, "/employee/request-trip"},
		{&p.ReRequestTrip, "/employee/re-request-trip/{id}"},
		{&p.UpdateLocation, "/employee/update-location"},
		{&p.AllocateTrip, "/admin/trips/{id}/allocate"},
		{&p.FinishTrip, "/employee/trips/finish"},
		{&p.Nearby, "/employee/cabs/nearby"},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
}

// Validate checks the base URL.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gateway.base_url %q is not an http(s) URL", c.BaseURL)
	}
	return nil
}

// HTTP is the REST gateway. It is safe for concurrent use.
type HTTP struct {
	cfg    Config
	base   *url.URL
	client *http.Client
	creds  *auth.ClientCred
	tracer trace.Tracer
	log    logger.Logger
}

// New returns a gateway for cfg.
func New(cfg Config) (*HTTP, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	g := &HTTP{
		cfg:  cfg,
		base: base,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		tracer: otel.Tracer("dispatchmap-gateway"),
		log:    infralogger.New("gateway"),
	}
	if cfg.OAuth.Enabled() {
		g.creds = auth.NewClientCred(cfg.OAuth)
	}
	return g, nil
}

// failureBody is the backend's error payload. Older routes use msg.
type failureBody struct {
	Message string   `json:"message"`
	Msg     string   `json:"msg"`
	Status  string   `json:"status"`
	TripID  model.ID `json:"trip_id"`
}

type tripBody struct {
	TripID model.ID `json:"trip_id"`
}

type allocateBody struct {
	Message string   `json:"message"`
	CabID   model.ID `json:"cab_id"`
	TripID  model.ID `json:"trip_id"`
}

type positionBody struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type nearbyCab struct {
	ID     model.ID `json:"id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Status string   `json:"status"`
}

func (g *HTTP) path(p string, id model.ID) string {
	return strings.ReplaceAll(p, "{id}", url.PathEscape(string(id)))
}

// RequestTrip asks for a trip starting at pos.
func (g *HTTP) RequestTrip(ctx context.Context, pos model.LatLon) (model.ID, error) {
	var out tripBody
	if err := g.do(ctx, "request_trip", http.MethodPost, g.cfg.Paths.RequestTrip, nil, positionBody{pos.Lat, pos.Lon}, &out); err != nil {
		return "", err
	}
	if out.TripID.Empty() {
		return "", missing("trip_id")
	}
	return out.TripID, nil
}

// ReRequestTrip asks for a new trip replacing the cancelled one.
func (g *HTTP) ReRequestTrip(ctx context.Context, cancelled model.ID) (model.ID, error) {
	var out tripBody
	if err := g.do(ctx, "re_request_trip", http.MethodPost, g.path(g.cfg.Paths.ReRequestTrip, cancelled), nil, nil, &out); err != nil {
		return "", err
	}
	if out.TripID.Empty() {
		return "", missing("trip_id")
	}
	return out.TripID, nil
}

// UpdateLocation stores the viewer's position on the backend.
func (g *HTTP) UpdateLocation(ctx context.Context, pos model.LatLon) error {
	return g.do(ctx, "update_location", http.MethodPost, g.cfg.Paths.UpdateLocation, nil, positionBody{pos.Lat, pos.Lon}, nil)
}

// AllocateTrip asks the backend to pick a cab for trip. The returned cab id
// is informational; the allocation is confirmed by a trip_allocated event.
func (g *HTTP) AllocateTrip(ctx context.Context, trip model.ID) (model.ID, error) {
	var out allocateBody
	if err := g.do(ctx, "allocate_trip", http.MethodPost, g.path(g.cfg.Paths.AllocateTrip, trip), nil, nil, &out); err != nil {
		return "", err
	}
	return out.CabID, nil
}

// FinishTrip completes the viewer's trip.
func (g *HTTP) FinishTrip(ctx context.Context, trip model.ID) error {
	var body any
	if !trip.Empty() {
		body = tripBody{TripID: trip}
	}
	return g.do(ctx, "finish_trip", http.MethodPost, g.cfg.Paths.FinishTrip, nil, body, nil)
}

// Nearby lists engaged cabs within radiusKm of pos. With a nil pos the
// query carries no centre and the backend answers for the whole fleet.
func (g *HTTP) Nearby(ctx context.Context, pos *model.LatLon, radiusKm float64) ([]model.Vehicle, error) {
	q := url.Values{}
	if pos != nil {
		q.Set("lat", strconv.FormatFloat(pos.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(pos.Lon, 'f', -1, 64))
		if radiusKm > 0 {
			q.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))
		}
	}
	var cabs []nearbyCab
	if err := g.do(ctx, "nearby", http.MethodGet, g.cfg.Paths.Nearby, q, nil, &cabs); err != nil {
		return nil, err
	}
	out := make([]model.Vehicle, 0, len(cabs))
	for _, c := range cabs {
		if c.ID.Empty() || c.Lat == nil || c.Lon == nil {
			g.log.Warnf("nearby: skipping cab without id or position")
			continue
		}
		out = append(out, model.Vehicle{
			ID:       c.ID,
			Position: model.LatLon{Lat: *c.Lat, Lon: *c.Lon},
			Status:   model.ParseVehicleStatus(c.Status),
		})
	}
	return out, nil
}

// do performs one call and decodes a 2xx body into out. Failures are
// returned as *events.CommandError.
func (g *HTTP) do(ctx context.Context, op, method, path string, q url.Values, body, out any) error {
	ctx, span := g.tracer.Start(ctx, "gateway."+op,
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
		),
	)
	defer span.End()

	err := g.attempt(ctx, method, path, q, body, out, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Debugw("gateway call failed", map[string]any{"op": op, "path": path, "error": err.Error()})
	}
	return err
}

func (g *HTTP) attempt(ctx context.Context, method, path string, q url.Values, body, out any, retryAuth bool) error {
	req, err := g.newRequest(ctx, method, path, q, body)
	if err != nil {
		return events.UnexpectedError(err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return events.TransportError(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return events.TransportError(fmt.Errorf("read body: %w", err))
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized && retryAuth && g.creds != nil {
		if _, err := g.creds.ForceRefresh(ctx); err == nil {
			return g.attempt(ctx, method, path, q, body, out, false)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		ce := events.UnexpectedError(fmt.Errorf("decode response: %w", err))
		ce.StatusCode = resp.StatusCode
		return ce
	}
	return nil
}

func (g *HTTP) newRequest(ctx context.Context, method, path string, q url.Values, body any) (*http.Request, error) {
	u := g.base.JoinPath(path)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && g.cfg.CSRFToken != "" {
		req.Header.Set(csrfHeader, g.cfg.CSRFToken)
		req.AddCookie(&http.Cookie{Name: csrfCookie, Value: g.cfg.CSRFToken})
	}
	if g.cfg.AccessToken != "" {
		req.AddCookie(&http.Cookie{Name: accessCookie, Value: g.cfg.AccessToken})
	}
	if g.creds != nil {
		if err := g.creds.SetAuthHeader(req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// failure turns a non-2xx response into a CommandError. A body that is not
// a JSON object makes the failure unexpected rather than rejected.
func failure(code int, raw []byte) *events.CommandError {
	var fb failureBody
	if err := json.Unmarshal(raw, &fb); err != nil {
		ce := events.UnexpectedError(fmt.Errorf("%s: undecodable error body", http.StatusText(code)))
		ce.StatusCode = code
		return ce
	}
	msg := fb.Message
	if msg == "" {
		msg = fb.Msg
	}
	return &events.CommandError{
		Kind:       events.ErrRejected,
		StatusCode: code,
		Message:    msg,
		Status:     fb.Status,
		TripID:     fb.TripID,
	}
}

var errMissingField = errors.New("missing field in response")

func missing(field string) *events.CommandError {
	return events.UnexpectedError(fmt.Errorf("%w: %s", errMissingField, field))
}
