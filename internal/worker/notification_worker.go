package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
)

// Task is a unit of background work.
type Task func(ctx context.Context)

// NotificationWorker runs delivery tasks off the request path. Tasks sharing
// a key run on the same goroutine, in submission order.
type NotificationWorker struct {
	queues []chan Task
	logger *zap.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewNotificationWorker sizes the pool from configuration.
func NewNotificationWorker(cfg config.NotificationConfig, logger *zap.Logger) *NotificationWorker {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	queues := make([]chan Task, workers)
	for i := range queues {
		queues[i] = make(chan Task, size)
	}
	return &NotificationWorker{queues: queues, logger: logger}
}

// Start launches the workers. Tasks keep running after ctx is cancelled so
// Stop can drain them; ctx values are preserved.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	taskCtx := context.WithoutCancel(ctx)
	for _, q := range w.queues {
		w.wg.Add(1)
		go func(q chan Task) {
			defer w.wg.Done()
			for task := range q {
				w.runTask(taskCtx, task)
			}
		}(q)
	}
	w.logger.Info("notification workers started", zap.Int("workers", len(w.queues)))
}

func (w *NotificationWorker) runTask(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("notification task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// Enqueue schedules task without blocking. It returns false when the pool is
// stopped or the queue for key is full.
func (w *NotificationWorker) Enqueue(key int64, task Task) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	if key < 0 {
		key = -key
	}
	q := w.queues[key%int64(len(w.queues))]
	select {
	case q <- task:
		return true
	default:
		w.logger.Warn("notification queue full; dropping task", zap.Int64("key", key))
		return false
	}
}

// Stop closes the queues and waits for queued tasks to finish.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, q := range w.queues {
		close(q)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
