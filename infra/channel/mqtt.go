package channel

import (
	"context"
	"strings"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/logger"
	infralogger "github.com/kilianp07/dispatchmap/infra/logger"
	"github.com/kilianp07/dispatchmap/infra/mqtt"
)

// MQTT receives events published on <prefix>/<event_kind>. Reconnects are
// handled by the paho client; subscriptions are restored on every connect.
type MQTT struct {
	cfg mqtt.Config
	log logger.Logger
}

// NewMQTT returns an MQTT transport. The connection is opened by Run.
func NewMQTT(cfg mqtt.Config) (*MQTT, error) {
	if _, err := mqtt.NewClientOptions(cfg); err != nil {
		return nil, err
	}
	return &MQTT{cfg: cfg, log: infralogger.New("mqtt_channel")}, nil
}

func init() {
	_ = Register("mqtt", func(conf map[string]any) (Channel, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewMQTT(c)
	})
}

// Run blocks until ctx is canceled.
func (m *MQTT) Run(ctx context.Context, post Poster) error {
	cli, err := mqtt.NewClient(m.cfg, mqtt.Hooks{
		OnConnect: func(reconnect bool) {
			send(ctx, m.log, post, events.Connected{Reconnect: reconnect})
		},
		OnLost: func(err error) {
			send(ctx, m.log, post, events.Disconnected{Reason: err.Error()})
		},
	})
	if err != nil {
		return err
	}
	defer cli.Disconnect()

	topic := cli.Topic("+")
	prefix := strings.TrimSuffix(topic, "+")
	if err := cli.Subscribe(topic, func(t string, payload []byte) {
		deliver(ctx, m.log, post, strings.TrimPrefix(t, prefix), payload)
	}); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
