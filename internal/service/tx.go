package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/clock"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/repository"
)

// eventSink collects events raised inside a transaction.
type eventSink struct {
	pending []events.Event
}

func (s *eventSink) emit(event events.Event) {
	s.pending = append(s.pending, event)
}

// txRunner executes unit-of-work closures and publishes their events only
// once the transaction has committed.
type txRunner struct {
	store      repository.Store
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func (r *txRunner) run(ctx context.Context, fn func(ctx context.Context, tx repository.Store, sink *eventSink) error) error {
	sink := &eventSink{}
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		sink.pending = nil
		return fn(ctx, tx, sink)
	})
	if err != nil {
		return err
	}
	for _, event := range sink.pending {
		r.publishEvent(ctx, event)
	}
	return nil
}

func (r *txRunner) publishEvent(ctx context.Context, event events.Event) {
	r.metrics.RecordTransition(string(event.Type))
	if r.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now()
	}
	_ = r.dispatcher.Publish(ctx, event)
}

func (r *txRunner) systemMessage(ctx context.Context, tx repository.Store, ticketID, actorID int64, text string) error {
	msg := &domain.Message{
		TicketID: ticketID,
		SenderID: actorID,
		Type:     domain.MessageTypeSystem,
		Text:     text,
		IsRead:   true,
		SentAt:   r.clock.Now(),
	}
	return tx.Messages().Create(ctx, msg)
}

func newTxRunner(store repository.Store, dispatcher events.Dispatcher, clk clock.Clock, metrics *observability.Metrics, logger *zap.Logger) txRunner {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return txRunner{store: store, dispatcher: dispatcher, clock: clk, metrics: metrics, logger: logger}
}
