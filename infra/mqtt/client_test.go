package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
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

func TestSubscribeRenewedOnConnect(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var got []string
	if err := cli.Subscribe("homebattery/telemetry/soc", 1, func(topic string, p []byte) {
		got = append(got, topic+"="+string(p))
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].qos != 1 {
		t.Fatalf("subscribe qos not applied: %#v", mc.subscribed)
	}
	// simulate a reconnect
	mc.Connect()
	if len(mc.subscribed) != 2 || mc.subscribed[1].topic != "homebattery/telemetry/soc" {
		t.Fatalf("subscription not renewed: %#v", mc.subscribed)
	}
	mc.deliver("homebattery/telemetry/soc", "42")
	if len(got) != 2 || got[0] != "homebattery/telemetry/soc=42" {
		t.Fatalf("handler not invoked on each subscription: %v", got)
	}
}

func TestPublishQoSAndRetain(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish(context.Background(), "homebattery/control/ac_mode", 2, true, []byte("1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].qos != 2 || !mc.published[0].retained {
		t.Fatalf("publish options not applied: %#v", mc.published)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	if len(mc.published) != 1 || mc.published[0].payload != "online" {
		t.Fatalf("expected online announcement, got %#v", mc.published)
	}
	cli.Disconnect()
	if len(mc.published) != 2 || mc.published[1].payload != "bye" {
		t.Fatalf("expected offline announcement on disconnect, got %#v", mc.published)
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish(context.Background(), "t", 0, false, []byte("1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 5, BackoffMS: 1000})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cli.Publish(ctx, "t", 0, false, []byte("1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if len(mc.published) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(mc.published))
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing broker error")
	}
	cfg = Config{Broker: "tcp://b:1883", QoS: map[string]byte{ClassCommand: 1}}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Topics.Soc != "homebattery/telemetry/soc" || cfg.Topics.ACMode != "homebattery/control/ac_mode" {
		t.Fatalf("unexpected default topics %#v", cfg.Topics)
	}
	if cfg.LWTTopic != "homebattery/status/online" {
		t.Fatalf("unexpected lwt topic %q", cfg.LWTTopic)
	}
	if cfg.QoSFor(ClassCommand) != 1 || cfg.QoSFor(ClassTelemetry) != 0 {
		t.Fatalf("unexpected qos lookup")
	}
	if got := cfg.Topics.StateKey("maintenance_mode"); got != "homebattery/state/maintenance_mode" {
		t.Fatalf("state key %q", got)
	}
	cfg.QoS[ClassState] = 3
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected qos error")
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}
	published []struct {
		topic    string
		qos      byte
		retained bool
		payload  string
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var p string
	switch v := payload.(type) {
	case string:
		p = v
	case []byte:
		p = string(v)
	}
	m.published = append(m.published, struct {
		topic    string
		qos      byte
		retained bool
		payload  string
	}{topic, qos, retained, p})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}{topic, qos, h})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

// deliver invokes every handler subscribed to topic.
func (m *mockClient) deliver(topic, payload string) {
	for _, s := range m.subscribed {
		if s.topic == topic && s.handler != nil {
			s.handler(m, mockMessage{topic: topic, p: []byte(payload)})
		}
	}
}

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
