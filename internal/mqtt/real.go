package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ir-remote/internal/ir"
)

// DefaultClientID is the MQTT client identifier.
const DefaultClientID = "ir-remote"

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("publish timeout")

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed, oldest first, when it
// comes back.
type RealPublisher struct {
	client paho.Client
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	buf      *ringBuffer
	connects int
}

// NewRealPublisher creates a publisher for the given broker. Connecting
// happens in the background and is retried until it succeeds, so the
// daemon starts even if the broker is down.
func NewRealPublisher(broker, clientID string, logger *slog.Logger) *RealPublisher {
	if clientID == "" {
		clientID = DefaultClientID
	}
	p := newPublisher(nil, logger)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "broker", broker, "err", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(client paho.Client, logger *slog.Logger) *RealPublisher {
	return &RealPublisher{
		client: client,
		logger: logger,
		now:    time.Now,
		buf:    newRingBuffer(BufferCapacity, logger),
	}
}

// Publish sends a captured IR event to the MQTT broker.
func (p *RealPublisher) Publish(event ir.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns the number of buffered messages lost to overflow.
func (p *RealPublisher) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		p.logger.Debug("mqtt offline, message buffered", "topic", msg.topic)
		return nil
	}
	p.mu.Unlock()

	if err := p.send(msg); err != nil {
		if errors.Is(err, errPublishTimeout) {
			p.mu.Lock()
			p.buf.push(msg)
			p.mu.Unlock()
		}
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

// onConnect replays buffered messages and, after the first connect,
// announces the reconnection.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	dropped := p.buf.dropped
	p.connects++
	reconnect := p.connects > 1
	p.mu.Unlock()

	p.logger.Info("mqtt connected", "replaying", len(pending), "dropped_total", dropped, "reconnect", reconnect)
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.logger.Warn("failed to replay buffered message", "topic", msg.topic, "err", err)
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			p.logger.Warn("failed to publish reconnect event", "err", err)
		}
	}
}
