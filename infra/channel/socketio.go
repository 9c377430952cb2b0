package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/logger"
	infralogger "github.com/kilianp07/dispatchmap/infra/logger"
)

// Engine.IO v4 packet types, as the first byte of a text frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioMessage = '4'
)

// Socket.IO packet types, following the Engine.IO message byte.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

const joinAdminRoom = "join_admin_room"

// SocketIOConfig configures the Socket.IO transport.
type SocketIOConfig struct {
	// URL of the backend, e.g. http://localhost:5000.
	URL       string `json:"url"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
	// AccessToken is sent as the access_token_cookie cookie.
	AccessToken   string            `json:"access_token"`
	Headers       map[string]string `json:"headers"`
	JoinAdminRoom bool              `json:"join_admin_room"`
	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration `json:"min_backoff"`
	MaxBackoff time.Duration `json:"max_backoff"`
	// HandshakeTimeout bounds dial plus the open and connect packets.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
}

// SetDefaults fills unset fields.
func (c *SocketIOConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "/socket.io/"
	}
	if c.Namespace == "" {
		c.Namespace = "/"
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
}

// Endpoint returns the websocket URL of the Engine.IO endpoint.
func (c SocketIOConfig) Endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("socketio url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("socketio url: unsupported scheme %q", u.Scheme)
	}
	u.Path = c.Path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SocketIO receives events over a Socket.IO websocket connection.
type SocketIO struct {
	cfg SocketIOConfig
	log logger.Logger
}

// NewSocketIO returns a transport for cfg.
func NewSocketIO(cfg SocketIOConfig) (*SocketIO, error) {
	cfg.SetDefaults()
	if cfg.URL == "" {
		return nil, fmt.Errorf("socketio: url is required")
	}
	if _, err := cfg.Endpoint(); err != nil {
		return nil, err
	}
	return &SocketIO{cfg: cfg, log: infralogger.New("socketio")}, nil
}

func init() {
	_ = Register("socketio", func(conf map[string]any) (Channel, error) {
		var c SocketIOConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSocketIO(c)
	})
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (s *SocketIO) Run(ctx context.Context, post Poster) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.MinBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	bo := backoff.WithContext(b, ctx)

	connected := false
	for {
		err := s.session(ctx, post, func() {
			send(ctx, s.log, post, events.Connected{Reconnect: connected})
			connected = true
			bo.Reset()
		})
		if ctx.Err() != nil {
			return nil
		}
		reason := "connection closed"
		if err != nil {
			reason = err.Error()
		}
		s.log.Warnf("socket.io disconnected: %s", reason)
		send(ctx, s.log, post, events.Disconnected{Reason: reason})

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *SocketIO) header() http.Header {
	h := http.Header{}
	for k, v := range s.cfg.Headers {
		h.Set(k, v)
	}
	if s.cfg.AccessToken != "" {
		h.Add("Cookie", (&http.Cookie{Name: "access_token_cookie", Value: s.cfg.AccessToken}).String())
	}
	return h
}

// nsPrefix is the namespace part of a Socket.IO packet; empty for "/".
func (s *SocketIO) nsPrefix() string {
	if s.cfg.Namespace == "/" {
		return ""
	}
	return s.cfg.Namespace + ","
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// session runs one connection. onReady is called after the namespace
// connect is acknowledged.
func (s *SocketIO) session(ctx context.Context, post Poster, onReady func()) error {
	endpoint, _ := s.cfg.Endpoint()
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(hctx, endpoint, &websocket.DialOptions{HTTPHeader: s.header()})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	frame, err := read(hctx, conn)
	if err != nil {
		return fmt.Errorf("read open: %w", err)
	}
	if len(frame) == 0 || frame[0] != eioOpen {
		return fmt.Errorf("unexpected first packet %q", frame)
	}
	var open openPacket
	if err := json.Unmarshal([]byte(frame[1:]), &open); err != nil {
		return fmt.Errorf("decode open packet: %w", err)
	}
	// Without a ping within interval+timeout the server is gone.
	idle := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	if idle <= 0 {
		idle = 45 * time.Second
	}
	s.log.Debugf("engine.io open sid=%s ping=%dms", open.SID, open.PingInterval)

	if err := write(hctx, conn, "40"+s.nsPrefix()); err != nil {
		return fmt.Errorf("namespace connect: %w", err)
	}

	ready := false
	for {
		rctx, rcancel := hctx, context.CancelFunc(func() {})
		if ready {
			rctx, rcancel = context.WithTimeout(ctx, idle)
		}
		frame, err := read(rctx, conn)
		rcancel()
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return err
		}
		if frame == "" {
			continue
		}
		switch frame[0] {
		case eioPing:
			// pong
			if err := write(ctx, conn, "3"); err != nil {
				return err
			}
		case eioClose:
			return errors.New("server closed the session")
		case eioMessage:
			done, err := s.packet(ctx, conn, post, frame[1:], &ready, onReady)
			if err != nil || done {
				return err
			}
		}
	}
}

// packet handles one Socket.IO packet. done reports a clean disconnect.
func (s *SocketIO) packet(ctx context.Context, conn *websocket.Conn, post Poster, p string, ready *bool, onReady func()) (bool, error) {
	if p == "" {
		return false, nil
	}
	typ, body := p[0], strings.TrimPrefix(p[1:], s.nsPrefix())
	switch typ {
	case sioConnect:
		*ready = true
		s.log.Infof("socket.io connected to %s", s.cfg.URL)
		if s.cfg.JoinAdminRoom {
			if err := write(ctx, conn, "42"+s.nsPrefix()+`["`+joinAdminRoom+`"]`); err != nil {
				return false, fmt.Errorf("join admin room: %w", err)
			}
		}
		onReady()
	case sioConnectError:
		return false, fmt.Errorf("namespace connect refused: %s", body)
	case sioDisconnect:
		return true, errors.New("namespace disconnected by server")
	case sioEvent:
		kind, payload, err := parseEvent(body)
		if err != nil {
			s.log.Warnf("malformed event packet: %v", err)
			return false, nil
		}
		deliver(ctx, s.log, post, kind, payload)
	}
	return false, nil
}

// parseEvent splits an event packet body, optionally prefixed by an ack
// id, into its name and first argument.
func parseEvent(body string) (string, []byte, error) {
	body = strings.TrimLeft(body, "0123456789")
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(body), &args); err != nil {
		return "", nil, err
	}
	if len(args) == 0 {
		return "", nil, errors.New("empty event")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("event name: %w", err)
	}
	if len(args) < 2 {
		return name, []byte("{}"), nil
	}
	return name, args[1], nil
}

func read(ctx context.Context, conn *websocket.Conn) (string, error) {
	typ, b, err := conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", nil
	}
	return string(b), nil
}

func write(ctx context.Context, conn *websocket.Conn, frame string) error {
	return conn.Write(ctx, websocket.MessageText, []byte(frame))
}
