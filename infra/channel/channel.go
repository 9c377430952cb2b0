// Package channel implements the backend event channel. Transports decode
// pushed events into events.Message values and hand them to the engine in
// arrival order.
package channel

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/monitoring"
	"github.com/kilianp07/dispatchmap/infra/logger"
)

// ErrUnknownTransport is returned for a channel type with no registered factory.
var ErrUnknownTransport = errors.New("channel: unknown transport")

// Poster receives decoded messages. engine.Engine.Post satisfies it.
type Poster func(ctx context.Context, m events.Message) error

// Channel is a persistent event subscription.
type Channel interface {
	// Run delivers events to post until ctx is canceled. It reconnects on
	// its own and emits Connected/Disconnected around every connection.
	Run(ctx context.Context, post Poster) error
}

var registry = factory.NewRegistry[Channel]()

// Register makes a transport available to New.
func Register(name string, f factory.Factory[Channel]) error {
	return registry.Register(name, f)
}

// Transports lists the registered transport names.
func Transports() []string { return registry.Names() }

// New builds the channel described by mc for a viewer of the given role.
// Operators join the admin room unless the configuration says otherwise.
func New(mc factory.ModuleConfig, role model.Role) (Channel, error) {
	if !registry.Has(mc.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, mc.Type)
	}
	conf := maps.Clone(mc.Conf)
	if conf == nil {
		conf = map[string]any{}
	}
	if _, ok := conf["join_admin_room"]; !ok {
		conf["join_admin_room"] = role == model.RoleOperator
	}
	return registry.Create(factory.ModuleConfig{Type: mc.Type, Conf: conf})
}

// deliver decodes one backend event and posts it. Malformed payloads are
// logged and reported, never fatal.
func deliver(ctx context.Context, log logger.Logger, post Poster, kind string, payload []byte) {
	m, err := events.Decode(kind, payload)
	if err != nil {
		log.Warnf("drop %s: %v", kind, err)
		monitoring.CaptureException(err, map[string]string{"module": "channel", "event": kind})
		return
	}
	if u, ok := m.(events.Unknown); ok {
		log.Debugw("unknown event kind", map[string]any{"kind": u.Name, "size": len(payload)})
	}
	send(ctx, log, post, m)
}

func send(ctx context.Context, log logger.Logger, post Poster, m events.Message) {
	if err := post(ctx, m); err != nil && ctx.Err() == nil {
		log.Errorf("post %s: %v", m.Kind(), err)
	}
}
