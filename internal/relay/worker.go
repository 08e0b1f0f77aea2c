package relay

import (
	"context"
	"time"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
)

// workerState is one step of the relay worker lifecycle.
type workerState int

const (
	stateConnecting workerState = iota
	stateSubscribing
	stateConnected
	stateBackoffWait
	stateTerminated
)

// String returns the state name for logging.
func (s workerState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateSubscribing:
		return "subscribing"
	case stateConnected:
		return "connected"
	case stateBackoffWait:
		return "backoff_wait"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Forwarder delivers inbound broker messages to the upstream platform.
//
// Forwarding failures are logged by the worker and never retried; the worker
// does not surface them anywhere else.
type Forwarder interface {
	Forward(ctx context.Context, relay *Config, topic string, payload []byte) error
}

// WorkerDeps holds the dependencies required by a relay worker.
type WorkerDeps struct {
	Config  *Config
	Dial    Dialer
	Inbox   <-chan PublishMessage
	Forward Forwarder
	Metrics *influxdb.Client // optional
	Logger  *logging.Logger
}

// Worker owns one relay's full connection lifecycle.
//
// It runs an explicit state machine:
//
//	Connecting -> Subscribing -> Connected -> BackoffWait -> Connecting ...
//
// with a terminal Terminated state reached on context cancellation or after
// MaxRetries consecutive failed connection attempts. While Connected, a
// nested publish goroutine drains the inbox, a single forwarding goroutine
// delivers inbound messages upstream in receipt order, and the poll loop
// handles broker events; leaving Connected cancels both goroutines without
// draining, abandoning any message already dequeued but not yet sent.
//
// A Worker is run exactly once. The supervisor observes termination through
// Done() and spawns a replacement, with fresh retry state, on its next sweep.
type Worker struct {
	cfg     *Config
	dial    Dialer
	inbox   <-chan PublishMessage
	forward Forwarder
	metrics *influxdb.Client
	logger  *logging.Logger

	// retries counts consecutive failed connection attempts since the last
	// successful handshake. Lives only for this worker instance.
	retries    int
	maxRetries int

	// backoff maps retry count to wait duration. Overridable in tests.
	backoff func(attempt int) time.Duration

	done chan struct{}
}

// NewWorker creates a worker for one relay. It does not connect until Run.
func NewWorker(deps WorkerDeps) *Worker {
	return &Worker{
		cfg:        deps.Config,
		dial:       deps.Dial,
		inbox:      deps.Inbox,
		forward:    deps.Forward,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With("component", "relay", "relay_id", deps.Config.ID),
		maxRetries: MaxRetries,
		backoff:    Backoff,
		done:       make(chan struct{}),
	}
}

// Run drives the state machine until termination. It blocks; callers run it
// in its own goroutine. Done() is closed when Run returns.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("relay worker starting")

	st := stateConnecting
	var conn Conn
	for st != stateTerminated {
		if ctx.Err() != nil {
			break
		}
		switch st {
		case stateConnecting:
			conn, st = w.connect()
		case stateSubscribing:
			st = w.subscribe(conn)
		case stateConnected:
			st = w.serve(ctx, conn)
		case stateBackoffWait:
			st = w.backoffWait(ctx)
		}
	}

	w.logger.Info("relay worker stopped")
}

// Done is closed once Run has returned. The supervisor uses it to confirm
// termination before reclaiming the worker's table entry.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// connect dials a fresh broker connection. Every attempt starts from a new
// client handle so a stale connection is never reused.
func (w *Worker) connect() (Conn, workerState) {
	conn, err := w.dial(w.cfg)
	if err != nil {
		w.logger.Error("failed to connect to MQTT broker",
			"broker", w.cfg.Host,
			"error", err,
		)
		return nil, stateBackoffWait
	}
	return conn, stateSubscribing
}

// subscribe registers every configured topic at most-once delivery. A failed
// subscribe is logged and skipped; the attempt proceeds regardless.
func (w *Worker) subscribe(conn Conn) workerState {
	for _, topic := range w.cfg.Topics {
		if err := conn.Subscribe(topic, QoSAtMostOnce); err != nil {
			w.logger.Warn("subscribe failed", "topic", topic, "error", err)
		}
	}
	return stateConnected
}

// forwardQueueCapacity bounds the inbound queue between the poll loop and the
// forwarding goroutine.
const forwardQueueCapacity = 64

// serve runs the Connected state: a nested publish goroutine drains the inbox
// and a forwarding goroutine delivers inbound messages upstream, while this
// goroutine polls broker events.
func (w *Worker) serve(ctx context.Context, conn Conn) workerState {
	loopCtx, cancelLoops := context.WithCancel(ctx)
	inbound := make(chan Event, forwardQueueCapacity)
	go w.publishLoop(loopCtx, conn)
	go w.forwardLoop(loopCtx, inbound)

	defer func() {
		// Cancel rather than drain: a message already dequeued but not yet
		// sent is abandoned, keeping recovery latency bounded.
		cancelLoops()
		conn.Close()
	}()

	for {
		ev, err := conn.Poll(ctx)
		if err != nil {
			// Context cancelled; shutdown.
			return stateTerminated
		}

		switch ev.Type {
		case EventConnAck:
			w.logger.Info("connected to MQTT broker", "broker", w.cfg.Host)
			w.retries = 0
			if w.metrics != nil {
				w.metrics.RecordConnectionEvent(w.cfg.ID, "connected")
			}

		case EventMessage:
			w.logger.Debug("broker message received", "topic", ev.Topic)
			if w.metrics != nil {
				w.metrics.RecordMessage(w.cfg.ID, influxdb.DirectionInbound)
			}
			// The single consumer preserves receipt order; the send is
			// non-blocking so a stalled platform never blocks the poll loop.
			select {
			case inbound <- ev:
			default:
				w.logger.Warn("forward queue full, dropping inbound message", "topic", ev.Topic)
			}

		case EventDisconnect:
			w.logger.Error("lost connection to MQTT broker",
				"broker", w.cfg.Host,
				"error", ev.Err,
			)
			if w.metrics != nil {
				w.metrics.RecordConnectionEvent(w.cfg.ID, "disconnected")
			}
			return stateBackoffWait
		}
	}
}

// forwardLoop delivers inbound broker messages upstream one at a time, in
// receipt order. Failures are logged and never retried.
func (w *Worker) forwardLoop(ctx context.Context, inbound <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-inbound:
			if err := w.forward.Forward(ctx, w.cfg, ev.Topic, ev.Payload); err != nil {
				w.logger.Error("failed to forward message upstream",
					"topic", ev.Topic,
					"error", err,
				)
			}
		}
	}
}

// publishLoop consumes the relay's inbox and delivers each message to the
// broker with at-least-once semantics, in enqueue order.
func (w *Worker) publishLoop(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.inbox:
			if ctx.Err() != nil {
				// Cancelled between dequeue and send: the message is dropped,
				// not retried.
				return
			}
			w.logger.Info("publishing external message", "topic", msg.Topic)
			if err := conn.Publish(msg.Topic, msg.Payload, QoSAtLeastOnce, msg.Retain); err != nil {
				w.logger.Error("failed to publish message", "topic", msg.Topic, "error", err)
				continue
			}
			if w.metrics != nil {
				w.metrics.RecordMessage(w.cfg.ID, influxdb.DirectionOutbound)
			}
		}
	}
}

// backoffWait sleeps between connection attempts, or terminates the worker
// once the retry cap is reached.
func (w *Worker) backoffWait(ctx context.Context) workerState {
	if w.retries >= w.maxRetries {
		w.logger.Error("max reconnect attempts reached, terminating worker", "attempts", w.retries)
		if w.metrics != nil {
			w.metrics.RecordConnectionEvent(w.cfg.ID, "exhausted")
		}
		return stateTerminated
	}

	delay := w.backoff(w.retries)
	w.logger.Info("reconnecting after backoff",
		"attempt", w.retries+1,
		"max_attempts", w.maxRetries,
		"delay", delay,
	)

	select {
	case <-ctx.Done():
		return stateTerminated
	case <-time.After(delay):
	}

	w.retries++
	return stateConnecting
}
