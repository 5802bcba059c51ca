package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/port"
)

type Event struct {
	Type    string
	Key     string
	Payload any
}

// EventDispatcher publishes order events off the request path. Delivery is
// best-effort: a full queue or a publish failure is logged and dropped.
type EventDispatcher struct {
	publisher port.EventPublisher
	log       *zap.Logger
	queue     chan Event
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewEventDispatcher(publisher port.EventPublisher, queueSize int, log *zap.Logger) *EventDispatcher {
	return &EventDispatcher{
		publisher: publisher,
		log:       log,
		queue:     make(chan Event, queueSize),
		timeout:   5 * time.Second,
	}
}

// Start launches workers that drain the queue until Close.
func (d *EventDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
}

// Enqueue never blocks. Events arriving after Close are dropped.
func (d *EventDispatcher) Enqueue(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("event dispatcher closed, dropping event",
			zap.String("type", ev.Type),
			zap.String("key", ev.Key),
		)
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.log.Warn("event queue full, dropping event",
			zap.String("type", ev.Type),
			zap.String("key", ev.Key),
		)
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *EventDispatcher) workerLoop(id int) {
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)

		if err := d.publisher.Publish(ctx, ev.Type, ev.Key, ev.Payload); err != nil {
			d.log.Warn("failed to publish event",
				zap.Int("worker", id),
				zap.String("type", ev.Type),
				zap.String("key", ev.Key),
				zap.Error(err),
			)
		}

		cancel()
	}
}
