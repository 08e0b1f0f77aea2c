// Package relay implements the core of the MQTT relay service: supervised
// broker connections bridging configured MQTT brokers with the cloud platform.
//
// This package manages:
//   - An immutable Registry of relay configurations fetched at startup
//   - One Worker per relay running an explicit connection state machine
//   - A deterministic, bounded reconnect Backoff policy
//   - A Supervisor owning the active-connection table and publish routing
//
// # Architecture
//
// The Supervisor sweeps on a fixed interval: it spawns a Worker, with a fresh
// bounded publish queue, for every relay missing from its table, and reaps
// workers that have terminated. Ingress publish requests are routed through
// Supervisor.Route onto the target relay's queue; the worker's publish loop
// delivers them to the broker. Inbound broker messages flow out through the
// Forwarder to the platform.
//
//	ingress -> Route -> [bounded queue] -> Worker publish loop -> broker
//	broker  -> Worker poll loop -> Forwarder -> platform
//
// # Worker lifecycle
//
//	Connecting -> Subscribing -> Connected -> BackoffWait -> Connecting ...
//	                                             |
//	                                (retry cap)  v
//	                                         Terminated
//
// A worker that exhausts its retry cap terminates permanently; the supervisor
// replaces it, with fresh retry state, on the next sweep.
//
// # Concurrency
//
// No broker client handle crosses a goroutine boundary. The only shared
// state is the supervisor's table (RWMutex) and the per-relay queues
// (many producers, one consumer). No lock is held during network I/O.
package relay
