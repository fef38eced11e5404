package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/nexus-receiver/internal/logic"
)

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Topic      string
	BufferSize int // messages kept while disconnected

	// PublishTimeout bounds how long Publish and PublishSystem wait for the
	// broker. It must stay below the receive loop watchdog timeout.
	PublishTimeout time.Duration
}

const (
	defaultBufferSize     = 100
	DefaultPublishTimeout = 5 * time.Second
	replayTimeout         = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client      paho.Client
	topic       string
	systemTopic string
	timeout     time.Duration

	mu    sync.Mutex
	queue *offlineQueue
}

// newPublisher applies defaults from cfg. The client is set by the caller.
func newPublisher(cfg Config) *RealPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &RealPublisher{
		topic:       topic,
		systemTopic: SystemTopic(topic),
		timeout:     timeout,
		queue:       newOfflineQueue(size),
	}
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "nexus-receiver"
	}

	p := newPublisher(cfg)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(p.systemTopic, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.WithError(err).Warn("mqtt: connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a reading to the MQTT broker.
func (p *RealPublisher) Publish(reading logic.Reading) error {
	// QoS 0 (at-most-once), not retained; readings repeat every frame
	return p.publish(bufferedMsg{topic: p.topic, payload: FormatPayload(reading)})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{
		topic:    p.systemTopic,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// publish sends msg, or queues it for replay if the connection is down.
// The connection check and the push share the lock with onConnect's drain,
// so a message is never queued after the drain for the same connection.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.queue.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timeout after %v", msg.topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on every (re)connect and replays queued messages.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending, dropped := p.queue.drain()
	p.mu.Unlock()

	if len(pending) == 0 {
		log.Info("mqtt: connected")
		return
	}

	log.WithFields(log.Fields{
		"replaying": len(pending),
		"dropped":   dropped,
	}).Info("mqtt: connected, replaying queued messages")
	go p.replay(c, pending)
}

func (p *RealPublisher) replay(c paho.Client, pending []bufferedMsg) {
	for _, msg := range pending {
		token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(replayTimeout) || token.Error() != nil {
			log.WithField("topic", msg.topic).Warn("mqtt: replay failed")
		}
	}
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
