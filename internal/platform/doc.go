// Package platform provides the cloud platform client for the relay service.
//
// This package manages:
//   - Fetching the relay list at startup (with bounded retry)
//   - Verifying each relay's network token before serving begins
//   - Forwarding broker-received messages upstream
//
// The relay core depends on this package only through the relay.Forwarder
// interface; everything else is startup wiring in cmd/mqttrelay.
//
// Error Handling:
//   - ErrUnauthorized is permanent and startup-fatal
//   - Forwarding failures are returned to the worker, which logs and drops
//     them; the platform client itself never retries a forward
package platform
