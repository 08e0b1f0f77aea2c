// Package logging provides structured logging for the MQTT relay service.
//
// This package wraps log/slog with:
//   - Level-based filtering (debug, info, warn, error)
//   - JSON or text output formats
//   - Default fields (service name, version)
//   - Component-scoped child loggers via With()
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("starting", "relays", 3)
//
//	workerLog := log.With("component", "relay", "relay_id", "abc")
//	workerLog.Warn("reconnecting", "attempt", 4)
package logging
