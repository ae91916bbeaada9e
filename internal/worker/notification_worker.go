// Package worker runs notification delivery off the request path.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/points-ledger/internal/config"
	"github.com/spec-kit/points-ledger/internal/events"
)

// ErrQueueFull is reported to the dispatcher when an event is dropped.
var ErrQueueFull = errors.New("notification queue full")

// Handler delivers one event.
type Handler func(context.Context, events.Event) error

// NotificationWorker buffers published ledger events and delivers them from
// a fixed set of goroutines. Publishers never block: a full queue drops.
type NotificationWorker struct {
	deliver Handler
	workers int
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan events.Event
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewNotificationWorker sizes the queue and worker pool from cfg.
func NewNotificationWorker(deliver Handler, cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.QueueSize
	if size < 0 {
		size = 0
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &NotificationWorker{
		deliver: deliver,
		workers: workers,
		logger:  logger,
		queue:   make(chan events.Event, size),
	}
}

// Subscribe routes every ledger event type from d into the queue.
func (w *NotificationWorker) Subscribe(d events.Dispatcher) {
	for _, eventType := range events.LedgerEventTypes() {
		d.Subscribe(eventType, w.enqueue)
	}
}

// Start launches the delivery goroutines. They exit once Stop drains the queue.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
}

// Stop refuses new events, waits for queued ones to be delivered and
// returns the number dropped over the worker's lifetime.
func (w *NotificationWorker) Stop() int64 {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.dropped.Load()
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return ErrQueueFull
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.deliver(ctx, event); err != nil {
			w.logger.Warn("notification delivery failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}
