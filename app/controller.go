package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/internal/eventbus"
)

// ErrNotAllowed is returned for an intent whose affordance is disabled.
var ErrNotAllowed = errors.New("action not available")

const controllerHelp = `commands:
  pick <lat> <lon>   set your location
  update             send your location to the backend
  request            request a trip
  rerequest          re-request the cancelled trip
  finish             finish the allocated trip
  allocate <trip>    allocate a cab to a pending trip (operator)
  state              print the render model
  help               show this text`

// Engine is what the controller drives. engine.Engine satisfies it.
type Engine interface {
	Post(ctx context.Context, m events.Message) error
	Current() dispatch.RenderModel
	Bus() *eventbus.Bus[engine.Change]
}

// Controller turns text commands into intents. It only posts an intent its
// affordance allows, and waits for the engine to reduce it before reading
// the next line so a second command sees the disabled affordance.
type Controller struct {
	eng     Engine
	out     io.Writer
	log     logger.Logger
	timeout time.Duration
}

// NewController returns a controller writing replies to out.
func NewController(eng Engine, out io.Writer, log logger.Logger) *Controller {
	if out == nil {
		out = io.Discard
	}
	return &Controller{eng: eng, out: out, log: logger.OrNop(log), timeout: 2 * time.Second}
}

// Run reads commands from in until EOF or ctx is done.
func (c *Controller) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := c.Exec(ctx, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Exec runs one command line.
func (c *Controller) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "help", "?":
		fmt.Fprintln(c.out, controllerHelp)
		return nil
	case "state":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(c.eng.Current())
	default:
		m, err := parseIntent(cmd, args)
		if err != nil {
			return err
		}
		return c.post(ctx, m)
	}
}

func parseIntent(cmd string, args []string) (events.Message, error) {
	switch cmd {
	case "pick":
		if len(args) != 2 {
			return nil, fmt.Errorf("usage: pick <lat> <lon>")
		}
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("lat: %w", err)
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, fmt.Errorf("lon: %w", err)
		}
		pos := model.LatLon{Lat: lat, Lon: lon}
		if !pos.Valid() {
			return nil, fmt.Errorf("invalid location %s", pos)
		}
		return events.PickLocation{Position: pos}, nil
	case "update":
		return events.UpdateLocation{}, nil
	case "request":
		return events.RequestTrip{}, nil
	case "rerequest":
		return events.ReRequestTrip{}, nil
	case "finish":
		return events.FinishTrip{}, nil
	case "allocate":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: allocate <trip>")
		}
		return events.AllocateVehicle{TripID: model.ID(args[0])}, nil
	default:
		return nil, fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func (c *Controller) post(ctx context.Context, m events.Message) error {
	if !c.eng.Current().Affordances.Allows(m) {
		return fmt.Errorf("%w: %s", ErrNotAllowed, m.Kind())
	}
	sub := c.eng.Bus().Subscribe()
	defer c.eng.Bus().Unsubscribe(sub)
	if err := c.eng.Post(ctx, m); err != nil {
		return err
	}
	c.log.Debugf("posted %s", m.Kind())
	wait := time.NewTimer(c.timeout)
	defer wait.Stop()
	for {
		select {
		case ch, ok := <-sub:
			if !ok {
				return nil
			}
			if ch.Message == m {
				return nil
			}
		case <-wait.C:
			c.log.Warnf("%s not reduced within %s", m.Kind(), c.timeout)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
