package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/dispatchmap/core/monitoring"
	"github.com/kilianp07/dispatchmap/infra/logger"
)

// DefaultTopicPrefix is used when Config.TopicPrefix is empty.
const DefaultTopicPrefix = "dispatch/events"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	AuthMethod  string      `json:"auth_method"`
	QoS         byte        `json:"qos"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// Topic returns the topic carrying events of the given kind.
func (c Config) Topic(kind string) string {
	prefix := strings.TrimSuffix(c.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + kind
}

// pahoClient is the subset of paho.Client used here.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Handler receives the payload published on topic.
type Handler func(topic string, payload []byte)

// Hooks are notified of connection changes. Reconnect is false only for the
// first successful connection.
type Hooks struct {
	OnConnect func(reconnect bool)
	OnLost    func(err error)
}

// Client wraps a paho client with topic subscriptions that survive
// reconnects and a retrying publisher.
type Client struct {
	cfg    Config
	cli    pahoClient
	hooks  Hooks
	logger logger.Logger

	mu     sync.Mutex
	subs   map[string]Handler
	seen   atomic.Bool
	closed atomic.Bool
}

// NewClient connects to the MQTT broker. A random client id is generated
// when none is configured.
func NewClient(cfg Config, hooks Hooks) (*Client, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "dispatchmap-" + uuid.NewString()
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:    cfg,
		hooks:  hooks,
		logger: logger.New("mqtt_client"),
		subs:   make(map[string]Handler),
	}
	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.logger.Errorf("connection lost: %v", err)
		if c.hooks.OnLost != nil {
			c.hooks.OnLost(err)
		}
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		c.logger.Warnf("reconnecting to MQTT broker %s", cfg.Broker)
	}
	c.cli = newMQTTClient(opts)
	if token := c.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	return c, nil
}

// onConnect restores subscriptions, which paho drops on a clean session.
func (c *Client) onConnect(pc paho.Client) {
	reconnect := c.seen.Swap(true)
	c.logger.Infof("MQTT connected (reconnect=%t)", reconnect)
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()
	for topic, h := range subs {
		if token := pc.Subscribe(topic, c.cfg.QoS, wrap(h)); token.Wait() && token.Error() != nil {
			c.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect(reconnect)
	}
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Subscribe registers h for topic, which may contain MQTT wildcards.
func (c *Client) Subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()
	token := c.cli.Subscribe(topic, c.cfg.QoS, wrap(h))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.logger.Infof("subscribed to %s", topic)
	return nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	if c.cfg.BackoffMS > 0 {
		b.InitialInterval = time.Duration(c.cfg.BackoffMS) * time.Millisecond
	}
	b.MaxElapsedTime = 0
	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Publish sends payload on topic, retrying with exponential backoff. The
// final failure is reported to the monitor.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("publish %s: client disconnected", topic)
	}
	attempt := 0
	op := func() error {
		attempt++
		token := c.cli.Publish(topic, c.cfg.QoS, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Warnf("publish attempt %d on %s failed: %v", attempt, topic, err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		err = fmt.Errorf("publish %s: %w", topic, err)
		monitoring.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
		return err
	}
	return nil
}

// Topic returns the configured topic for an event kind.
func (c *Client) Topic(kind string) string { return c.cfg.Topic(kind) }

// Disconnect gracefully closes the MQTT connection.
func (c *Client) Disconnect() {
	if c.closed.Swap(true) {
		return
	}
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(250)
	}
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificates found in %s", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
