package mqtt

import (
	"context"
	"fmt"
	"testing"
	"time"

	coremon "github.com/kilianp07/dispatchmap/core/monitoring"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any)    {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	withMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 2, BackoffMS: 1}, Hooks{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	topic := cli.Topic("location_update")
	if err := cli.Publish(context.Background(), topic, []byte("{}")); err == nil {
		t.Fatalf("expected error")
	}
	if len(mc.published) != 3 {
		t.Fatalf("published %d times, want 3", len(mc.published))
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["topic"] != topic || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}
