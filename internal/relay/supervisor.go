package relay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
)

// Supervisor defaults, used when the corresponding dep is zero.
const (
	defaultRestartInterval = 120 * time.Second
	defaultQueueCapacity   = 32
)

// entry is one row of the active-connection table: a running worker and the
// send side of its publish queue.
type entry struct {
	worker *Worker
	inbox  chan PublishMessage
}

// SupervisorDeps holds the dependencies required by the connection supervisor.
type SupervisorDeps struct {
	Registry *Registry
	Dial     Dialer
	Forward  Forwarder
	Metrics  *influxdb.Client // optional
	Logger   *logging.Logger

	// RestartInterval is the sweep interval. Zero means 120 seconds.
	RestartInterval time.Duration

	// QueueCapacity bounds each relay's publish queue. Zero means 32.
	QueueCapacity int
}

// Supervisor maintains exactly one live worker per configured relay.
//
// Each sweep spawns a worker, with a fresh bounded publish queue, for every
// relay id missing from the table, then reaps entries whose worker has
// terminated. A reaped relay is respawned on the following sweep with fresh
// retry state.
//
// Thread Safety:
//   - The table is guarded by an RWMutex: sweeps take the write lock,
//     Route and ActiveIDs take the read lock. No lock is held during
//     network I/O (workers dial inside their own goroutines).
type Supervisor struct {
	registry *Registry
	dial     Dialer
	forward  Forwarder
	metrics  *influxdb.Client
	logger   *logging.Logger

	// workerLogger is the untagged base logger handed to workers, which tag
	// themselves; reusing the supervisor's logger would duplicate the
	// component key.
	workerLogger *logging.Logger

	interval time.Duration
	queueCap int

	mu     sync.RWMutex
	active map[string]*entry
}

// NewSupervisor creates a supervisor. Workers are not spawned until Run.
//
// Returns:
//   - *Supervisor: Configured supervisor ready to run
//   - error: If required dependencies are missing
func NewSupervisor(deps SupervisorDeps) (*Supervisor, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("relay registry is required")
	}
	if deps.Dial == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if deps.Forward == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	interval := deps.RestartInterval
	if interval <= 0 {
		interval = defaultRestartInterval
	}
	queueCap := deps.QueueCapacity
	if queueCap <= 0 {
		queueCap = defaultQueueCapacity
	}

	return &Supervisor{
		registry:     deps.Registry,
		dial:         deps.Dial,
		forward:      deps.Forward,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With("component", "supervisor"),
		workerLogger: deps.Logger,
		interval:     interval,
		queueCap:     queueCap,
		active:       make(map[string]*entry),
	}, nil
}

// Run sweeps the table on a fixed interval until the context is cancelled.
// The first sweep happens immediately. It blocks; callers run it in its own
// goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("connection supervisor started",
		"relays", s.registry.Len(),
		"interval", s.interval,
	)

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("connection supervisor stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

// sweep spawns workers for relays missing from the table, then reaps entries
// whose worker has observably terminated.
//
// Worker failures never propagate here: a terminated worker is simply removed
// and becomes eligible for respawn on the next sweep.
func (s *Supervisor) sweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rc := range s.registry.All() {
		if _, ok := s.active[rc.ID]; ok {
			continue
		}

		inbox := make(chan PublishMessage, s.queueCap)
		w := NewWorker(WorkerDeps{
			Config:  rc,
			Dial:    s.dial,
			Inbox:   inbox,
			Forward: s.forward,
			Metrics: s.metrics,
			Logger:  s.workerLogger,
		})
		go w.Run(ctx)

		s.active[rc.ID] = &entry{worker: w, inbox: inbox}
		s.logger.Info("spawned relay worker", "relay_id", rc.ID)
	}

	for id, e := range s.active {
		select {
		case <-e.worker.Done():
			delete(s.active, id)
			s.logger.Info("reaped terminated relay worker", "relay_id", id)
		default:
		}
	}
}

// Route enqueues a publish message on the target relay's queue.
//
// When relayID is empty, the default target is the lexicographically smallest
// configured relay id with an active connection. The registry is sorted, so
// the choice is deterministic.
//
// Returns:
//   - string: The id of the relay the message was enqueued on (meaningful when
//     relayID was empty and the default target was selected).
//   - error: nil when the message was enqueued; exactly one publish attempt
//     will be scheduled, and the broker-level outcome is logged by the worker,
//     never surfaced here. ErrNoActiveRelay when relayID was empty and no
//     relay is active. ErrUnknownRelay when relayID has no table entry.
//     ErrWorkerStopped when the worker terminated but is not yet reaped.
//     ErrQueueFull when the bounded queue is at capacity.
func (s *Supervisor) Route(relayID string, msg PublishMessage) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if relayID == "" {
		for _, rc := range s.registry.All() {
			if _, ok := s.active[rc.ID]; ok {
				relayID = rc.ID
				break
			}
		}
		if relayID == "" {
			return "", ErrNoActiveRelay
		}
	}

	e, ok := s.active[relayID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRelay, relayID)
	}

	select {
	case <-e.worker.Done():
		return "", fmt.Errorf("%w: %q", ErrWorkerStopped, relayID)
	default:
	}

	select {
	case e.inbox <- msg:
		return relayID, nil
	case <-e.worker.Done():
		return "", fmt.Errorf("%w: %q", ErrWorkerStopped, relayID)
	default:
		return "", fmt.Errorf("%w: %q", ErrQueueFull, relayID)
	}
}

// ActiveIDs returns the ids of relays with a live table entry, sorted.
func (s *Supervisor) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveCount returns the number of live table entries.
func (s *Supervisor) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}
