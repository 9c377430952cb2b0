package surface

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

const (
	relayWriteWait = 5 * time.Second
	relaySendQueue = 64
)

// Frame is what browsers receive: one snapshot on connect, then ops.
type Frame struct {
	Type     string        `json:"type"`
	ClientID string        `json:"client_id,omitempty"`
	Scene    *render.Scene `json:"scene,omitempty"`
	Op       *render.Op    `json:"op,omitempty"`
}

type relayClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Relay forwards surface operations to websocket clients. Late joiners get
// the current scene first. Clients that cannot keep up are dropped.
type Relay struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*relayClient]struct{}
	markers map[string]render.Marker
	lines   map[string]render.Line
	status  string
}

// NewRelay returns a relay. Any origin is accepted.
func NewRelay(log logger.Logger) *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:      logger.OrNop(log),
		clients:  make(map[*relayClient]struct{}),
		markers:  make(map[string]render.Marker),
		lines:    make(map[string]render.Line),
	}
}

func (r *Relay) Upsert(id string, pos model.LatLon, style render.Style) {
	r.mu.Lock()
	r.markers[id] = render.Marker{ID: id, Position: pos, Style: style}
	r.mu.Unlock()
	r.broadcast(render.Op{Kind: render.OpUpsert, ID: id, Position: pos, Style: style})
}

func (r *Relay) Remove(id string) {
	r.mu.Lock()
	delete(r.markers, id)
	delete(r.lines, id)
	r.mu.Unlock()
	r.broadcast(render.Op{Kind: render.OpRemove, ID: id})
}

func (r *Relay) DrawLine(id string, from, to model.LatLon) {
	r.mu.Lock()
	r.lines[id] = render.Line{ID: id, From: from, To: to}
	r.mu.Unlock()
	r.broadcast(render.Op{Kind: render.OpLine, ID: id, Position: from, To: to})
}

func (r *Relay) SetStatusText(text string) {
	r.mu.Lock()
	r.status = text
	r.mu.Unlock()
	r.broadcast(render.Op{Kind: render.OpStatus, Text: text})
}

// Clients returns the number of connected clients.
func (r *Relay) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Relay) broadcast(op render.Op) {
	data, err := json.Marshal(Frame{Type: "op", Op: &op})
	if err != nil {
		r.log.Errorf("relay marshal: %v", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		select {
		case c.send <- data:
		default:
			r.log.Warnf("relay client %s too slow, dropping", c.id)
			r.drop(c)
		}
	}
}

// drop must be called with mu held.
func (r *Relay) drop(c *relayClient) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	close(c.send)
}

// snapshot must be called with mu held.
func (r *Relay) snapshot() render.Scene {
	sc := render.Scene{Status: r.status}
	for _, m := range r.markers {
		sc.Markers = append(sc.Markers, m)
	}
	for _, l := range r.lines {
		sc.Lines = append(sc.Lines, l)
	}
	sort.Slice(sc.Markers, func(i, j int) bool { return sc.Markers[i].ID < sc.Markers[j].ID })
	sort.Slice(sc.Lines, func(i, j int) bool { return sc.Lines[i].ID < sc.Lines[j].ID })
	return sc
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warnf("relay upgrade: %v", err)
		return
	}
	c := &relayClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, relaySendQueue)}

	// Registering and queueing the snapshot under one lock keeps ops that
	// follow it in order.
	r.mu.Lock()
	sc := r.snapshot()
	data, err := json.Marshal(Frame{Type: "snapshot", ClientID: c.id, Scene: &sc})
	if err == nil {
		c.send <- data
		r.clients[c] = struct{}{}
	}
	r.mu.Unlock()
	if err != nil {
		r.log.Errorf("relay snapshot: %v", err)
		_ = conn.Close()
		return
	}
	r.log.Infof("relay client %s connected from %s", c.id, req.RemoteAddr)

	go r.writePump(c)
	r.readPump(c)
}

func (r *Relay) writePump(c *relayClient) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			r.mu.Lock()
			r.drop(c)
			r.mu.Unlock()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump only detects the client going away.
func (r *Relay) readPump(c *relayClient) {
	defer func() {
		r.mu.Lock()
		r.drop(c)
		r.mu.Unlock()
		r.log.Infof("relay client %s disconnected", c.id)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		r.drop(c)
	}
}
