package monitoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	coremon "github.com/kilianp07/dispatchmap/core/monitoring"
)

type captureTransport struct {
	events []*sentry.Event
}

func (c *captureTransport) Configure(sentry.ClientOptions) {}
func (c *captureTransport) SendEvent(e *sentry.Event)      { c.events = append(c.events, e) }
func (c *captureTransport) Flush(time.Duration) bool       { return true }
func (c *captureTransport) Close()                         {}

func TestNewSentryMonitor_EmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(SentryConfig{}, "1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", m)
	}
}

func TestSentryMonitor_CaptureWithTags(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://key@example.com/1", Transport: tr})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}
	m.CaptureException(errors.New("gateway returned html"), map[string]string{"op": "finish_trip"})
	m.Flush(time.Second)
	if len(tr.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(tr.events))
	}
	if tr.events[0].Tags["op"] != "finish_trip" {
		t.Fatalf("missing tag: %v", tr.events[0].Tags)
	}
}

func TestSentryMonitor_IgnoresCancellation(t *testing.T) {
	tr := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "https://key@example.com/1", Transport: tr})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	m := &sentryMonitor{hub: sentry.NewHub(client, sentry.NewScope())}
	m.CaptureException(fmt.Errorf("request_trip: %w", context.Canceled), nil)
	m.CaptureException(nil, nil)
	m.Flush(time.Second)
	if len(tr.events) != 0 {
		t.Fatalf("expected no events, got %d", len(tr.events))
	}
}
