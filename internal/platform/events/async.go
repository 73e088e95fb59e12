package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull       = errors.New("event queue full")
	ErrPublisherClosed = errors.New("event publisher closed")
)

// Async moves a slow publisher (a broker round trip) off the request path.
// Publish only enqueues; one worker delivers events in order. When the queue
// is full the event is refused with ErrQueueFull and the caller logs it.
type Async struct {
	pub    Publisher
	queue  chan Event
	done   chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewAsync(pub Publisher, size int, logger zerolog.Logger) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		pub:    pub,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrPublisherClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		if err := a.pub.Publish(context.Background(), ev); err != nil {
			a.logger.Warn().Err(err).
				Str("type", ev.Type).
				Str("resource_id", ev.ResourceID).
				Msg("publish event")
		}
	}
}

// Close stops accepting events and waits until the queued ones have been
// delivered. Calling it twice is safe.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
