package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Message flow directions for RecordMessage.
const (
	DirectionInbound  = "inbound"  // broker -> platform
	DirectionOutbound = "outbound" // ingress -> broker
)

// RecordConnectionEvent writes a relay connection lifecycle event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - relayID: The relay whose connection changed
//   - event: Lifecycle event name (e.g., "connected", "disconnected", "exhausted")
//
// Example:
//
//	client.RecordConnectionEvent("relay-eu-01", "connected")
func (c *Client) RecordConnectionEvent(relayID string, event string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"relay_id": relayID,
			"event":    event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordMessage counts one message flowing through a relay.
//
// Parameters:
//   - relayID: The relay the message traversed
//   - direction: DirectionInbound (broker to platform) or DirectionOutbound
//     (ingress to broker)
func (c *Client) RecordMessage(relayID string, direction string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"messages",
		map[string]string{
			"relay_id":  relayID,
			"direction": direction,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
