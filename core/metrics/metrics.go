package metrics

import "time"

// Command outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport"
	OutcomeRejected   = "rejected"
	OutcomeUnexpected = "unexpected"
)

// MessageEvent describes one message reduced by the engine.
type MessageEvent struct {
	Seq      int64
	Kind     string
	Phase    string
	Commands int
	Duration time.Duration
	Time     time.Time
}

// Sink records reduced messages. It is the only mandatory method; the
// recorder interfaces below are optional and detected by type assertion.
type Sink interface {
	RecordMessage(ev MessageEvent) error
}

// CommandEvent is the outcome of a gateway command.
type CommandEvent struct {
	CommandID string
	Op        string
	Outcome   string
	Latency   time.Duration
	Error     string
	Time      time.Time
}

// CommandRecorder records gateway command outcomes.
type CommandRecorder interface {
	RecordCommand(ev CommandEvent) error
}

// ConnectionEvent is a change in event channel connectivity.
type ConnectionEvent struct {
	Connected bool
	Reconnect bool
	Reason    string
	Time      time.Time
}

// ConnectionRecorder records channel connects and disconnects.
type ConnectionRecorder interface {
	RecordConnection(ev ConnectionEvent) error
}

// SceneEvent summarises the render model after a message.
type SceneEvent struct {
	Phase   string
	Tracked int
	Pending int
	Ops     int
	Time    time.Time
}

// SceneRecorder records scene sizes and render op counts.
type SceneRecorder interface {
	RecordScene(ev SceneEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordMessage(MessageEvent) error       { return nil }
func (NopSink) RecordCommand(CommandEvent) error       { return nil }
func (NopSink) RecordConnection(ConnectionEvent) error { return nil }
func (NopSink) RecordScene(SceneEvent) error           { return nil }
