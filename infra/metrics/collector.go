package metrics

import (
	"context"

	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/events"
	coremetrics "github.com/kilianp07/dispatchmap/core/metrics"
	"github.com/kilianp07/dispatchmap/infra/logger"
	"github.com/kilianp07/dispatchmap/internal/eventbus"
)

// StartEventCollector subscribes to the engine bus and records every change
// on sink. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[engine.Change], sink coremetrics.Sink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-sub:
				if !ok {
					return
				}
				if err := Record(sink, ch); err != nil {
					log.Warnf("record %s: %v", ch.Message.Kind(), err)
				}
			}
		}
	}()
	return done
}

// Record maps one engine change onto the sink's recorders.
func Record(sink coremetrics.Sink, ch engine.Change) error {
	phase := string(ch.Next.Phase)
	if err := sink.RecordMessage(coremetrics.MessageEvent{
		Seq:      ch.Seq,
		Kind:     ch.Message.Kind(),
		Phase:    phase,
		Commands: len(ch.Commands),
		Time:     ch.Time,
	}); err != nil {
		return err
	}
	if r, ok := sink.(coremetrics.SceneRecorder); ok {
		ev := coremetrics.SceneEvent{Phase: phase, Tracked: len(ch.Next.Others), Pending: len(ch.Next.Trips), Ops: len(ch.Ops), Time: ch.Time}
		if err := r.RecordScene(ev); err != nil {
			return err
		}
	}
	if r, ok := sink.(coremetrics.ConnectionRecorder); ok {
		switch m := ch.Message.(type) {
		case events.Connected:
			if err := r.RecordConnection(coremetrics.ConnectionEvent{Connected: true, Reconnect: m.Reconnect, Time: ch.Time}); err != nil {
				return err
			}
		case events.Disconnected:
			if err := r.RecordConnection(coremetrics.ConnectionEvent{Reason: m.Reason, Time: ch.Time}); err != nil {
				return err
			}
		}
	}
	if o := ch.Outcome; o != nil {
		if r, ok := sink.(coremetrics.CommandRecorder); ok {
			ev := coremetrics.CommandEvent{CommandID: o.CommandID, Op: o.Op.String(), Outcome: coremetrics.OutcomeOK, Latency: o.Latency, Time: ch.Time}
			if o.Err != nil {
				ev.Outcome = o.Err.Kind.String()
				ev.Error = o.Err.Error()
			}
			if err := r.RecordCommand(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
