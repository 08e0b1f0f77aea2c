// Package influxdb provides optional relay telemetry storage.
//
// It wraps the official influxdb-client-go v2 library with the service's
// patterns for connection management and non-blocking batched writes.
//
// # Purpose
//
// This package records time-series data for:
//   - Relay connection lifecycle events (connected, disconnected, exhausted)
//   - Per-relay message counters (inbound from brokers, outbound to brokers)
//
// Telemetry is strictly fire-and-forget: a slow or unavailable InfluxDB never
// blocks the relay workers or the ingress API.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordConnectionEvent("relay-eu-01", "connected")
//	client.RecordMessage("relay-eu-01", influxdb.DirectionInbound)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are surfaced via the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
