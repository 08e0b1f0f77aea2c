package relay

import "context"

// EventType identifies a broker connection notification.
type EventType int

const (
	// EventConnAck signals the broker acknowledged the connection. The worker
	// resets its retry state on the first acknowledgment of an attempt.
	EventConnAck EventType = iota

	// EventMessage carries an inbound application message from the broker.
	EventMessage

	// EventDisconnect signals the connection was lost. Err describes why.
	EventDisconnect
)

// Event is a single notification polled from a broker connection.
type Event struct {
	Type    EventType
	Topic   string
	Payload []byte
	Err     error
}

// Conn is a live connection to one MQTT broker.
//
// It exposes the protocol-client primitives the worker state machine needs:
// subscribe, publish, and poll-next-event. A Conn is owned by exactly one
// worker and is never shared across task boundaries.
type Conn interface {
	// Subscribe registers interest in a topic at the given QoS.
	Subscribe(topic string, qos byte) error

	// Publish sends a message to the broker.
	Publish(topic string, payload []byte, qos byte, retain bool) error

	// Poll blocks until the next connection event or context cancellation.
	Poll(ctx context.Context) (Event, error)

	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Dialer establishes a new broker connection for a relay.
//
// Workers call the dialer on every (re)connection attempt so that each
// attempt starts from a fresh client handle.
type Dialer func(cfg *Config) (Conn, error)
