package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher fans notifications out to sinks on a background worker. The
// queue is bounded: when it is full new notifications are dropped and logged.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	queue  chan Notification
	closed bool
	done   chan struct{}

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize int
	// Timeout bounds each sink call.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewDispatcher starts a dispatcher delivering to sinks.
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Dispatcher{
		sinks:   sinks,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		queue:   make(chan Notification, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue schedules n for delivery and reports whether it was accepted. It
// never blocks.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Notification queue full, dropping", "kind", n.Kind, "queue_len", len(d.queue))
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := sink.Notify(ctx, n)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn("Notification delivery failed", "sink", sink.Name(), "kind", n.Kind, "error", err)
			continue
		}
		d.delivered.Add(1)
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	remaining := len(d.queue)
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("Notification dispatcher closing", "queue_remaining", remaining)

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn("Notification dispatcher shutdown timeout", "error", ctx.Err())
		return ctx.Err()
	}
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() map[string]int64 {
	return map[string]int64{
		"delivered": d.delivered.Load(),
		"dropped":   d.dropped.Load(),
		"failed":    d.failed.Load(),
		"queued":    int64(len(d.queue)),
	}
}
