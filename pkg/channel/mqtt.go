package channel

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultMQTTServer       = "tcp://localhost:1883"
	DefaultMQTTClientID     = "sensorkit"
	DefaultMQTTStateTopic   = "sensorkit/out"
	DefaultMQTTCommandTopic = "sensorkit/in"

	mqttInboxSize = 16
)

// MQTTConfig describes a broker connection used as a text channel.
type MQTTConfig struct {
	Server       string
	ClientID     string
	Username     string
	Password     string
	StateTopic   string // lines written to the channel are published here
	CommandTopic string // payloads received here become channel input
	QoS          byte
}

// MQTTTransport turns a pair of MQTT topics into a duplex byte stream.
// Every complete line written is published as one message; every message
// received on the command topic is readable as raw bytes.
type MQTTTransport struct {
	client mqtt.Client
	cfg    MQTTConfig

	mu      sync.Mutex
	line    bytes.Buffer
	pending []byte

	inbox     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ io.ReadWriteCloser = (*MQTTTransport)(nil)

// NewMQTT connects to the broker and subscribes to the command topic.
func NewMQTT(cfg MQTTConfig) (*MQTTTransport, error) {
	cfg = withMQTTDefaults(cfg)

	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	t, err := newMQTTTransport(client, cfg)
	if err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return t, nil
}

func newMQTTTransport(client mqtt.Client, cfg MQTTConfig) (*MQTTTransport, error) {
	cfg = withMQTTDefaults(cfg)
	t := &MQTTTransport{
		client: client,
		cfg:    cfg,
		inbox:  make(chan []byte, mqttInboxSize),
		closed: make(chan struct{}),
	}

	token := client.Subscribe(cfg.CommandTopic, cfg.QoS, t.onMessage)
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", cfg.CommandTopic, token.Error())
	}
	return t, nil
}

func withMQTTDefaults(cfg MQTTConfig) MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultMQTTServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultMQTTClientID
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = DefaultMQTTStateTopic
	}
	if cfg.CommandTopic == "" {
		cfg.CommandTopic = DefaultMQTTCommandTopic
	}
	return cfg
}

func (t *MQTTTransport) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case t.inbox <- payload:
	case <-t.closed:
	}
}

// Read returns bytes from received command messages, blocking until one arrives.
func (t *MQTTTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	select {
	case msg := <-t.inbox:
		n := copy(p, msg)
		if n < len(msg) {
			t.mu.Lock()
			t.pending = append(t.pending, msg[n:]...)
			t.mu.Unlock()
		}
		return n, nil
	case <-t.closed:
		return 0, io.EOF
	}
}

// Write buffers text and publishes each complete line to the state topic.
func (t *MQTTTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.line.Write(p)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(t.line.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimRight(t.line.Next(idx+1), "\r\n")
		if len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
	}
	t.mu.Unlock()

	for _, line := range lines {
		token := t.client.Publish(t.cfg.StateTopic, t.cfg.QoS, false, line)
		token.Wait()
		if err := token.Error(); err != nil {
			return 0, fmt.Errorf("mqtt publish %s: %w", t.cfg.StateTopic, err)
		}
	}
	return len(p), nil
}

// Close unsubscribes and disconnects from the broker.
func (t *MQTTTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		if token := t.client.Unsubscribe(t.cfg.CommandTopic); token != nil {
			token.Wait()
		}
		t.client.Disconnect(250)
	})
	return nil
}
