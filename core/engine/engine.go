// Package engine runs the client: it owns the single consumer loop that feeds
// messages to the reducer, executes the resulting commands against the
// gateway and pushes render ops to the attached surfaces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/journal"
	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/monitoring"
	"github.com/kilianp07/dispatchmap/core/render"
	"github.com/kilianp07/dispatchmap/internal/eventbus"
)

// ErrStopped is returned by Post once the engine loop has exited.
var ErrStopped = errors.New("engine: stopped")

// Config tunes the engine loop.
type Config struct {
	// InboxSize is the capacity of the message queue.
	InboxSize int `json:"inbox_size"`
	// CommandTimeout bounds every gateway call.
	CommandTimeout time.Duration `json:"command_timeout"`
	// BusBuffer is the per-observer change buffer.
	BusBuffer int `json:"bus_buffer"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.InboxSize <= 0 {
		c.InboxSize = 64
	}
	if c.BusBuffer <= 0 {
		c.BusBuffer = 32
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
}

type pendingCommand struct {
	op    dispatch.Op
	start time.Time
}

// Engine serialises every state change through one goroutine.
type Engine struct {
	gw       Gateway
	cfg      Config
	log      logger.Logger
	bus      *eventbus.Bus[Change]
	store    journal.Store
	surfaces []render.Surface

	inbox    chan events.Message
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.RWMutex
	state dispatch.State
	model dispatch.RenderModel
	seq   int64

	pendingMu sync.Mutex
	pending   map[string]pendingCommand

	now func() time.Time
}

// New creates an engine seeded with initial.
func New(initial dispatch.State, gw Gateway, cfg Config, log logger.Logger) (*Engine, error) {
	if gw == nil {
		return nil, fmt.Errorf("engine: nil gateway")
	}
	cfg.SetDefaults()
	return &Engine{
		gw:      gw,
		cfg:     cfg,
		log:     logger.OrNop(log),
		bus:     eventbus.New[Change](cfg.BusBuffer),
		store:   journal.NopStore{},
		inbox:   make(chan events.Message, cfg.InboxSize),
		done:    make(chan struct{}),
		state:   initial,
		model:   dispatch.Render(initial),
		pending: make(map[string]pendingCommand),
		now:     time.Now,
	}, nil
}

// SetJournal configures the store every reduced message is appended to.
// Numbering continues after the highest sequence already stored. It must be
// called before Run.
func (e *Engine) SetJournal(ctx context.Context, store journal.Store) error {
	if store == nil {
		store = journal.NopStore{}
	}
	last, err := store.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("journal last seq: %w", err)
	}
	e.mu.Lock()
	e.seq = last
	e.mu.Unlock()
	e.store = store
	return nil
}

// AddSurface attaches a surface. It must be called before Run.
func (e *Engine) AddSurface(s render.Surface) {
	e.surfaces = append(e.surfaces, s)
}

// Bus returns the change bus.
func (e *Engine) Bus() *eventbus.Bus[Change] { return e.bus }

// Current returns the latest render model.
func (e *Engine) Current() dispatch.RenderModel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// State returns the latest state.
func (e *Engine) State() dispatch.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Post enqueues m. It blocks while the inbox is full.
func (e *Engine) Post(ctx context.Context, m events.Message) error {
	if m == nil {
		return fmt.Errorf("engine: nil message")
	}
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- m:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run draws the initial scene and processes messages until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stop()
	e.applyOps(render.Diff(render.Scene{}, e.Current().Scene()))
	e.log.Infof("engine started as %s %s", e.state.Role, e.state.ViewerID)
	for {
		select {
		case <-ctx.Done():
			e.log.Infof("engine stopping: %v", ctx.Err())
			return nil
		case m := <-e.inbox:
			e.handle(ctx, m)
		}
	}
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// Close stops the loop, waits for outstanding commands and releases the
// journal and the bus.
func (e *Engine) Close() error {
	e.stop()
	e.wg.Wait()
	e.bus.Close()
	return e.store.Close()
}

func (e *Engine) handle(ctx context.Context, m events.Message) {
	start := e.now()
	prevModel := e.model
	next, cmds := dispatch.Reduce(e.state, m)
	if err := next.CheckInvariants(); err != nil {
		e.log.Errorf("invariant violated after %s: %v", m.Kind(), err)
		monitoring.CaptureException(err, map[string]string{"kind": m.Kind()})
	}
	nextModel := dispatch.Render(next)
	ops := render.Diff(prevModel.Scene(), nextModel.Scene())
	e.applyOps(ops)

	e.mu.Lock()
	e.state, e.model = next, nextModel
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	messagesReduced.WithLabelValues(m.Kind()).Inc()
	reduceLatency.Observe(e.now().Sub(start).Seconds())
	switch m := m.(type) {
	case events.Unknown:
		e.log.Debugf("ignoring unknown event %q", m.Name)
	case events.LocationUpdate:
		if !m.Position.Valid() {
			e.log.Warnf("location_update for cab %s has invalid position %s; marker not moved", m.VehicleID, m.Position)
		}
	}
	outcome := e.complete(m)
	e.appendJournal(ctx, seq, m, next)

	if missed := e.bus.Publish(Change{
		Seq:      seq,
		Message:  m,
		Prev:     prevModel,
		Next:     nextModel,
		Ops:      ops,
		Commands: cmds,
		Outcome:  outcome,
		Time:     start,
	}); missed > 0 {
		changesDropped.Add(float64(missed))
	}
	for _, c := range cmds {
		e.execute(ctx, c)
	}
}

func (e *Engine) applyOps(ops []render.Op) {
	if len(ops) == 0 {
		return
	}
	for _, s := range e.surfaces {
		render.Apply(s, ops)
	}
}

func (e *Engine) appendJournal(ctx context.Context, seq int64, m events.Message, s dispatch.State) {
	rec, err := journal.NewRecord(seq, e.now(), m, string(s.Phase()), s.StatusText)
	if err != nil {
		e.log.Errorf("journal encode %s: %v", m.Kind(), err)
		return
	}
	if err := e.store.Append(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Errorf("journal append: %v", err)
	}
}

func (e *Engine) execute(ctx context.Context, c dispatch.Command) {
	id := uuid.NewString()
	e.pendingMu.Lock()
	e.pending[id] = pendingCommand{op: c.Op, start: e.now()}
	e.pendingMu.Unlock()
	inflightGauge.Inc()
	e.log.Debugw("command issued", map[string]any{"id": id, "op": c.Op.String(), "command": c.String()})

	e.wg.Add(1)
	monitoring.Go(func() {
		defer e.wg.Done()
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
		defer cancel()
		res := e.call(cctx, id, c)
		if err := e.Post(ctx, res); err != nil {
			e.log.Debugf("dropping %s result: %v", c.Op, err)
		}
	})
}

// call runs c on the gateway and wraps the answer in its result message.
func (e *Engine) call(ctx context.Context, id string, c dispatch.Command) events.Message {
	switch c.Op {
	case dispatch.OpRequestTrip:
		trip, err := e.gw.RequestTrip(ctx, c.Position)
		return events.RequestTripResult{CommandID: id, TripID: trip, Err: classify(err)}
	case dispatch.OpReRequestTrip:
		trip, err := e.gw.ReRequestTrip(ctx, c.TripID)
		return events.ReRequestTripResult{CommandID: id, CancelledID: c.TripID, TripID: trip, Err: classify(err)}
	case dispatch.OpUpdateLocation:
		err := e.gw.UpdateLocation(ctx, c.Position)
		return events.UpdateLocationResult{CommandID: id, Position: c.Position, Err: classify(err)}
	case dispatch.OpAllocate:
		vehicle, err := e.gw.AllocateTrip(ctx, c.TripID)
		return events.AllocateResult{CommandID: id, TripID: c.TripID, VehicleID: vehicle, Err: classify(err)}
	case dispatch.OpFinishTrip:
		err := e.gw.FinishTrip(ctx, c.TripID)
		return events.FinishTripResult{CommandID: id, TripID: c.TripID, Err: classify(err)}
	default:
		var pos *model.LatLon
		if !c.Fleet {
			pos = &c.Position
		}
		vs, err := e.gw.Nearby(ctx, pos, c.RadiusKm)
		return events.NearbyResult{CommandID: id, Vehicles: vs, Err: classify(err)}
	}
}

// complete closes the bookkeeping of the command m answers, if any.
func (e *Engine) complete(m events.Message) *Outcome {
	id, ce, ok := resultOf(m)
	if !ok {
		return nil
	}
	e.pendingMu.Lock()
	p, found := e.pending[id]
	delete(e.pending, id)
	e.pendingMu.Unlock()
	if !found {
		// results replayed from a journal or posted by hand
		return nil
	}
	inflightGauge.Dec()
	out := &Outcome{CommandID: id, Op: p.op, Latency: e.now().Sub(p.start), Err: ce}
	commandLatency.WithLabelValues(p.op.String()).Observe(out.Latency.Seconds())
	commandsTotal.WithLabelValues(p.op.String(), outcomeLabel(ce)).Inc()
	switch {
	case ce == nil:
	case ce.Kind == events.ErrRejected:
		e.log.Infof("%s rejected: %v", p.op, ce)
	case ce.Kind == events.ErrUnexpected:
		e.log.Errorf("%s failed: %v", p.op, ce)
		monitoring.CaptureException(ce, map[string]string{"op": p.op.String(), "command_id": id})
	default:
		e.log.Warnf("%s failed: %v", p.op, ce)
	}
	return out
}

func resultOf(m events.Message) (string, *events.CommandError, bool) {
	switch r := m.(type) {
	case events.RequestTripResult:
		return r.CommandID, r.Err, true
	case events.ReRequestTripResult:
		return r.CommandID, r.Err, true
	case events.UpdateLocationResult:
		return r.CommandID, r.Err, true
	case events.AllocateResult:
		return r.CommandID, r.Err, true
	case events.FinishTripResult:
		return r.CommandID, r.Err, true
	case events.NearbyResult:
		return r.CommandID, r.Err, true
	}
	return "", nil, false
}

// classify maps gateway errors to command errors. Timeouts and
// cancellations count as transport failures.
func classify(err error) *events.CommandError {
	if err == nil {
		return nil
	}
	var ce *events.CommandError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return events.TransportError(err)
	}
	return events.UnexpectedError(err)
}

func outcomeLabel(ce *events.CommandError) string {
	if ce == nil {
		return "ok"
	}
	return ce.Kind.String()
}

