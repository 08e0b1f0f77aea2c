package relay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config does not set one.
	defaultConnectTimeout = 10 * time.Second

	// defaultKeepAlive is used when the config does not set one.
	defaultKeepAlive = 30 * time.Second

	// defaultOpTimeout is the maximum time to wait for subscribe and publish
	// acknowledgments.
	defaultOpTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	defaultDisconnectQuiesce = 1000

	// maxPayloadSize limits outbound MQTT payloads (1MB), aligning with
	// typical broker limits.
	maxPayloadSize = 1 << 20

	// eventBuffer is the capacity of a connection's event queue.
	eventBuffer = 64

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// NewDialer returns a Dialer that connects to brokers with paho, applying the
// shared MQTT tuning from the service configuration.
func NewDialer(cfg config.MQTTConfig) Dialer {
	return func(rc *Config) (Conn, error) {
		return dial(cfg, rc)
	}
}

// pahoConn adapts the callback-driven paho client to the poll-next-event
// contract of Conn. Callbacks push events onto a bounded queue which Poll
// drains. Disconnects travel on their own single-slot channel: the lost
// handler fires at most once per connection, and the worker must see it even
// when the event queue is full.
type pahoConn struct {
	client     pahomqtt.Client
	events     chan Event
	disconnect chan Event
}

// dial creates a paho client for the relay and waits for the initial
// connection handshake.
func dial(mcfg config.MQTTConfig, rc *Config) (Conn, error) {
	c := &pahoConn{
		events:     make(chan Event, eventBuffer),
		disconnect: make(chan Event, 1),
	}

	opts, err := buildClientOptions(mcfg, rc)
	if err != nil {
		return nil, err
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.push(Event{Type: EventConnAck})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, lostErr error) {
		c.pushDisconnect(Event{Type: EventDisconnect, Err: lostErr})
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.push(Event{Type: EventMessage, Topic: msg.Topic(), Payload: msg.Payload()})
	})

	timeout := opts.ConnectTimeout

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// push enqueues an event without blocking the paho callback goroutine.
// If the poll loop has fallen behind by a full buffer, the event is dropped;
// a lost ConnAck or message is recovered by the normal reconnect cycle.
// Disconnects never go through here: they use pushDisconnect so a full
// buffer cannot wedge the worker on a dead connection.
func (c *pahoConn) push(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}

// pushDisconnect enqueues a disconnect without blocking. The channel has one
// slot and the lost handler fires at most once per connection, so delivery is
// guaranteed regardless of the state of the event queue.
func (c *pahoConn) pushDisconnect(ev Event) {
	select {
	case c.disconnect <- ev:
	default:
	}
}

// buildClientOptions creates paho MQTT options for one relay.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on the relay's TLS setting)
//   - Client ID (relay-supplied, or a default derived from the relay id)
//   - Authentication credentials (if provided)
//   - TLS with an optional relay-supplied CA certificate
//   - Clean session mode
//
// Auto-reconnect is deliberately disabled: the worker state machine owns the
// reconnection lifecycle, and each attempt must start from a fresh client.
func buildClientOptions(mcfg config.MQTTConfig, rc *Config) (*pahomqtt.ClientOptions, error) {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if rc.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, rc.Host, rc.Port)
	opts.AddBroker(brokerURL)

	// Client identification
	clientID := rc.ClientID
	if clientID == "" {
		clientID = "mqtt-relay-" + rc.ID
	}
	opts.SetClientID(clientID)

	// Authentication (if credentials provided)
	if rc.Username != "" {
		opts.SetUsername(rc.Username)
		opts.SetPassword(rc.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// The worker owns reconnection; a single failed attempt must surface as
	// an error rather than retry inside the client.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Connection timeout
	timeout := defaultConnectTimeout
	if mcfg.ConnectTimeout > 0 {
		timeout = time.Duration(mcfg.ConnectTimeout) * time.Second
	}
	opts.SetConnectTimeout(timeout)

	// Keepalive - broker sends PINGs to detect dead connections
	keepAlive := defaultKeepAlive
	if mcfg.KeepAlive > 0 {
		keepAlive = time.Duration(mcfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	// TLS configuration if enabled
	if rc.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		if len(rc.CACert) > 0 {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(rc.CACert) {
				return nil, fmt.Errorf("%w: invalid CA certificate for relay %q", ErrConnectionFailed, rc.ID)
			}
			tlsConfig.RootCAs = pool
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts, nil
}

// Subscribe registers interest in a topic at the given QoS.
func (c *pahoConn) Subscribe(topic string, qos byte) error {
	token := c.client.Subscribe(topic, qos, nil)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Publish sends a message to the broker and waits for the acknowledgment.
func (c *pahoConn) Publish(topic string, payload []byte, qos byte, retain bool) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrPublishFailed)
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	token := c.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(defaultOpTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultOpTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Poll blocks until the next connection event or context cancellation.
func (c *pahoConn) Poll(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev := <-c.disconnect:
		return ev, nil
	case ev := <-c.events:
		return ev, nil
	}
}

// Close disconnects from the broker, allowing a short quiesce period for
// pending operations.
func (c *pahoConn) Close() {
	c.client.Disconnect(defaultDisconnectQuiesce)
}
