package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler reacts to a committed event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans committed events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(handler EventHandler, types ...EventType)
}

type inMemoryDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
}

// NewInMemoryDispatcher returns a dispatcher that runs handlers in the
// publishing goroutine, in subscription order.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
	}
}

// Publish never fails: the transaction behind event has already committed,
// so a failing or panicking handler is logged and the rest still run.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := d.invoke(ctx, handler, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
	return nil
}

func (d *inMemoryDispatcher) invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers handler for each of types. With no types it listens
// to every known event.
func (d *inMemoryDispatcher) Subscribe(handler EventHandler, types ...EventType) {
	if len(types) == 0 {
		types = AllEventTypes
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range types {
		// copy on write so Publish can iterate a snapshot without holding the lock
		next := make([]EventHandler, len(d.handlers[t]), len(d.handlers[t])+1)
		copy(next, d.handlers[t])
		d.handlers[t] = append(next, handler)
	}
}
