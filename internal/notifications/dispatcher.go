package notifications

import (
	"context"
	"sync"
	"time"

	"tourbook/pkg/logger"
	"tourbook/pkg/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emitter is what the booking service depends on.
type Emitter interface {
	Emit(e Event)
}

// Dispatcher queues events in a bounded buffer drained by one goroutine.
// Emit never blocks: a full queue drops the event.
type Dispatcher struct {
	publisher      Publisher
	queue          chan Event
	log            *logger.Logger
	publishTimeout time.Duration

	mu       sync.RWMutex
	stopped  bool
	done     chan struct{}
	startOne sync.Once
}

func NewDispatcher(publisher Publisher, size int, log *logger.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		publisher:      publisher,
		queue:          make(chan Event, size),
		log:            log,
		publishTimeout: 10 * time.Second,
		done:           make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOne.Do(func() {
		go d.run()
	})
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
		err := d.publisher.Publish(ctx, e)
		cancel()

		if err != nil {
			metrics.IncNotification(string(e.Type), "failed")
			d.log.Error("Failed to publish booking event",
				"event_id", e.ID,
				"event_type", e.Type,
				"booking_id", e.BookingID,
				"error", err,
			)
			continue
		}
		metrics.IncNotification(string(e.Type), "published")
	}
}

func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		metrics.IncNotification(string(e.Type), "dropped")
		d.log.Warn("Dispatcher stopped, dropping booking event", "event_type", e.Type, "booking_id", e.BookingID)
		return
	}

	select {
	case d.queue <- e:
	default:
		metrics.IncNotification(string(e.Type), "dropped")
		d.log.Warn("Notification queue full, dropping booking event",
			"event_id", e.ID,
			"event_type", e.Type,
			"booking_id", e.BookingID,
		)
	}
}

// Stop closes the queue and waits for queued events to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.Start()
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
