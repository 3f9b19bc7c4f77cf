package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/notification"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/worker"
)

// NotificationService turns committed events into chat deliveries. Delivery
// is best effort: failures are logged and counted, never returned to the
// operation that raised the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	planner    *notification.Planner
	notifier   notification.Notifier
	worker     *worker.NotificationWorker
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies wires the service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Planner    *notification.Planner
	Notifier   notification.Notifier
	Worker     *worker.NotificationWorker
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		planner:    deps.Planner,
		notifier:   deps.Notifier,
		worker:     deps.Worker,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every lifecycle and role event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	deliveries, ok := n.plan(ctx, event)
	if !ok {
		return nil
	}
	for _, d := range deliveries {
		if n.worker == nil {
			n.send(ctx, d)
			continue
		}
		// keyed by chat so one recipient sees its messages in commit order
		if !n.worker.Enqueue(d.ChatID, func(ctx context.Context) { n.send(ctx, d) }) {
			n.metrics.RecordNotification(string(d.EventType), false)
			n.logger.Warn("notification dropped",
				zap.String("event_type", string(d.EventType)),
				zap.Int64("ticket_id", d.TicketID),
				zap.Int64("chat_id", d.ChatID))
		}
	}
	return nil
}

func (n *NotificationService) plan(ctx context.Context, event events.Event) ([]notification.Delivery, bool) {
	deliveries, err := n.planner.Plan(ctx, event)
	if err != nil {
		n.metrics.RecordNotification(string(event.Type), false)
		n.logger.Error("plan notification",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
		return nil, false
	}
	return deliveries, true
}

// send delivers one message. A failed recipient is logged and counted and
// never affects the others.
func (n *NotificationService) send(ctx context.Context, d notification.Delivery) {
	err := n.notifier.Notify(ctx, d)
	n.metrics.RecordNotification(string(d.EventType), err == nil)
	if err != nil {
		n.logger.Warn("deliver notification",
			zap.String("event_type", string(d.EventType)),
			zap.Int64("ticket_id", d.TicketID),
			zap.Int64("chat_id", d.ChatID),
			zap.Error(err))
	}
}
