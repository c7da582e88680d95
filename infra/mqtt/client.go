package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremon "github.com/kilianp07/homebattery/core/monitoring"
	"github.com/kilianp07/homebattery/infra/logger"
)

// Handler receives the payload of a message.
type Handler func(topic string, payload []byte)

// Publisher publishes payloads on topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
}

// Subscriber registers message handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, h Handler) error
}

// PubSub is implemented by PahoClient and MemoryBroker.
type PubSub interface {
	Publisher
	Subscriber
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

type subscription struct {
	qos     byte
	handler Handler
}

// PahoClient implements PubSub using Eclipse Paho. Subscriptions are
// restored after every reconnect.
type PahoClient struct {
	cli    pahoClient
	logger logger.Logger

	mu   sync.Mutex
	subs map[string]subscription

	maxRetries int
	backoff    time.Duration
	lwtTopic   string
	lwtPayload string
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_client")
	pc := &PahoClient{
		logger:     logger,
		subs:       make(map[string]subscription),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		lwtTopic:   cfg.LWTTopic,
		lwtPayload: cfg.LWTPayload,
	}
	if pc.maxRetries < 0 {
		pc.maxRetries = 0
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		pc.resubscribe(c)
		if pc.lwtTopic != "" {
			c.Publish(pc.lwtTopic, cfg.LWTQoS, cfg.LWTRetain, "online")
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetOrderMatters(false)
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
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) resubscribe(c pahoClient) {
	p.mu.Lock()
	subs := make(map[string]subscription, len(p.subs))
	for t, s := range p.subs {
		subs[t] = s
	}
	p.mu.Unlock()
	for topic, s := range subs {
		if token := c.Subscribe(topic, s.qos, wrap(s.handler)); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s: %v", topic, token.Error())
		}
	}
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// Subscribe registers h for topic. The subscription is renewed on reconnect.
func (p *PahoClient) Subscribe(topic string, qos byte, h Handler) error {
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: h}
	p.mu.Unlock()
	if p.cli == nil || !p.cli.IsConnected() {
		return nil
	}
	token := p.cli.Subscribe(topic, qos, wrap(h))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	p.logger.Debugf("subscribed to %s", topic)
	return nil
}

// Publish sends payload to topic, retrying with exponential backoff.
func (p *PahoClient) Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	var publishErr error
retry:
	for attempt := 0; ; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %s: %s", topic, payload)
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		if attempt >= p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			publishErr = ctx.Err()
			break retry
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	coremon.CapturePublishFailure(topic, publishErr)
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		if p.lwtTopic != "" {
			p.cli.Publish(p.lwtTopic, 0, true, p.lwtPayload).WaitTimeout(time.Second)
		}
		p.cli.Disconnect(250)
	}
}
