package mqtt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func writeSelfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(42),
		Subject:               pkix.Name{CommonName: "broker.local"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	dir := t.TempDir()
	certFile, keyFile = filepath.Join(dir, "client.pem"), filepath.Join(dir, "client.key")
	writePEM(t, certFile, "CERTIFICATE", der)
	writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)
	return certFile, keyFile
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key := writeSelfSigned(t)
	tlsCfg, err := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: cert}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) != 1 || tlsCfg.RootCAs == nil {
		t.Fatalf("client cert or CA bundle missing: %+v", tlsCfg)
	}
	if _, err := (Config{UseTLS: true, CABundle: filepath.Join(t.TempDir(), "missing.pem")}).LoadTLSConfig(); err == nil {
		t.Fatal("expected error for missing CA bundle")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestNewClientOptionsRequiresBroker(t *testing.T) {
	if _, err := NewClientOptions(Config{ClientID: "id"}); err == nil {
		t.Fatalf("expected error without broker")
	}
}

func TestTopic(t *testing.T) {
	if got := (Config{}).Topic("location_update"); got != "dispatch/events/location_update" {
		t.Fatalf("default topic = %s", got)
	}
	if got := (Config{TopicPrefix: "fleet/"}).Topic("trip_allocated"); got != "fleet/trip_allocated" {
		t.Fatalf("topic = %s", got)
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestQoSAndClientID(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", QoS: 1}, Hooks{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !strings.HasPrefix(mc.opts.ClientID, "dispatchmap-") {
		t.Fatalf("client id = %q", mc.opts.ClientID)
	}
	if err := cli.Subscribe(cli.Topic("+"), func(string, []byte) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].qos != 1 || mc.subscribed[0].topic != "dispatch/events/+" {
		t.Fatalf("subscribe = %+v", mc.subscribed)
	}
	if err := cli.Publish(context.Background(), "t", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].qos != 1 {
		t.Fatalf("publish qos not applied")
	}
}

func TestHandlerReceivesPayload(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883"}, Hooks{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var gotTopic, gotPayload string
	if err := cli.Subscribe("dispatch/events/+", func(topic string, p []byte) {
		gotTopic, gotPayload = topic, string(p)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mc.handlers[0](mc, mockMessage{topic: "dispatch/events/location_update", p: []byte(`{"cab_id":1}`)})
	if gotTopic != "dispatch/events/location_update" || gotPayload != `{"cab_id":1}` {
		t.Fatalf("handler got %s %s", gotTopic, gotPayload)
	}
}

func TestSubscriptionsRestoredOnReconnect(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	var connects []bool
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883"}, Hooks{
		OnConnect: func(reconnect bool) { connects = append(connects, reconnect) },
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Subscribe("a/+", func(string, []byte) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mc.opts.OnConnect(mc)
	if len(mc.subscribed) != 2 || mc.subscribed[1].topic != "a/+" {
		t.Fatalf("subscription not restored: %+v", mc.subscribed)
	}
	if len(connects) != 2 || connects[0] || !connects[1] {
		t.Fatalf("connect hooks = %v", connects)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewClient(cfg, Hooks{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
	if err := cli.Publish(context.Background(), "t", nil); err == nil {
		t.Fatalf("publish after disconnect should fail")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, Hooks{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish(context.Background(), "t", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d publishes", len(mc.published))
	}
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: fmt.Errorf("refused")}
	withMock(t, mc)
	if _, err := NewClient(Config{Broker: "tcp://localhost:1883"}, Hooks{}); err == nil {
		t.Fatalf("expected connect error")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic string
		qos   byte
	}
	handlers    []paho.MessageHandler
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, _ interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic string
		qos   byte
	}{topic, qos})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.handlers = append(m.handlers, h)
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
