package engine

import (
	"time"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/render"
)

// Change is published on the engine bus after every reduced message.
type Change struct {
	Seq      int64
	Message  events.Message
	Prev     dispatch.RenderModel
	Next     dispatch.RenderModel
	Ops      []render.Op
	Commands []dispatch.Command
	// Outcome is set when Message is the result of a gateway command.
	Outcome *Outcome
	Time    time.Time
}

// Outcome describes a finished gateway command.
type Outcome struct {
	CommandID string
	Op        dispatch.Op
	Latency   time.Duration
	Err       *events.CommandError
}
