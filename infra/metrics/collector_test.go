package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/events"
	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
	"github.com/kilianp07/dispatchmap/core/render"
	"github.com/kilianp07/dispatchmap/internal/eventbus"
)

type recordingSink struct {
	messages    []coremetrics.MessageEvent
	commands    []coremetrics.CommandEvent
	connections []coremetrics.ConnectionEvent
	scenes      []coremetrics.SceneEvent
}

func (r *recordingSink) RecordMessage(ev coremetrics.MessageEvent) error {
	r.messages = append(r.messages, ev)
	return nil
}

func (r *recordingSink) RecordCommand(ev coremetrics.CommandEvent) error {
	r.commands = append(r.commands, ev)
	return nil
}

func (r *recordingSink) RecordConnection(ev coremetrics.ConnectionEvent) error {
	r.connections = append(r.connections, ev)
	return nil
}

func (r *recordingSink) RecordScene(ev coremetrics.SceneEvent) error {
	r.scenes = append(r.scenes, ev)
	return nil
}

func TestRecord(t *testing.T) {
	sink := &recordingSink{}
	ch := engine.Change{
		Seq:     7,
		Message: events.RequestTripResult{CommandID: "c1", Err: &events.CommandError{Kind: events.ErrRejected, Message: "No cabs"}},
		Next:    dispatch.RenderModel{Phase: dispatch.PhaseIdle, Others: []render.Marker{{ID: "vehicle:1"}}},
		Ops:     []render.Op{{Kind: render.OpStatus, Text: "Error: No cabs"}},
		Outcome: &engine.Outcome{CommandID: "c1", Op: dispatch.OpRequestTrip, Latency: time.Second, Err: &events.CommandError{Kind: events.ErrRejected, Message: "No cabs"}},
	}
	if err := Record(sink, ch); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0].Seq != 7 || sink.messages[0].Phase != "idle" {
		t.Fatalf("messages: %+v", sink.messages)
	}
	if len(sink.scenes) != 1 || sink.scenes[0].Tracked != 1 || sink.scenes[0].Ops != 1 {
		t.Fatalf("scenes: %+v", sink.scenes)
	}
	if len(sink.commands) != 1 || sink.commands[0].Outcome != "rejected" || sink.commands[0].Op != "request_trip" {
		t.Fatalf("commands: %+v", sink.commands)
	}
	if len(sink.connections) != 0 {
		t.Fatalf("unexpected connection events: %+v", sink.connections)
	}

	_ = Record(sink, engine.Change{Message: events.Connected{Reconnect: true}})
	if len(sink.connections) != 1 || !sink.connections[0].Reconnect {
		t.Fatalf("connections: %+v", sink.connections)
	}
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New[engine.Change](0)
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartEventCollector(ctx, bus, sink)
	// Subscribe happens synchronously, so the publish below is delivered.
	bus.Publish(engine.Change{Seq: 1, Message: events.Disconnected{Reason: "eof"}})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not exit after bus close")
	}
	if len(sink.messages) != 1 || len(sink.connections) != 1 {
		t.Fatalf("unexpected records %+v %+v", sink.messages, sink.connections)
	}
}
