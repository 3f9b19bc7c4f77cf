package worker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/worker"
)

func TestTasksWithSameKeyRunInOrder(t *testing.T) {
	w := worker.NewNotificationWorker(config.NotificationConfig{Workers: 4, QueueSize: 64}, nil)
	w.Start(context.Background())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 20; i++ {
		i := i
		assert.True(t, w.Enqueue(7, func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	w.Stop()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestEnqueueAfterStopIsRejected(t *testing.T) {
	w := worker.NewNotificationWorker(config.NotificationConfig{Workers: 1, QueueSize: 1}, nil)
	w.Start(context.Background())
	w.Stop()
	w.Stop()
	assert.False(t, w.Enqueue(1, func(context.Context) {}))
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	w := worker.NewNotificationWorker(config.NotificationConfig{Workers: 1, QueueSize: 4}, nil)
	w.Start(context.Background())

	ran := false
	w.Enqueue(1, func(context.Context) { panic("boom") })
	w.Enqueue(1, func(context.Context) { ran = true })
	w.Stop()
	assert.True(t, ran)
}

func TestFullQueueDrops(t *testing.T) {
	w := worker.NewNotificationWorker(config.NotificationConfig{Workers: 1, QueueSize: 1}, nil)
	// not started: the single slot fills and the next task is dropped.
	assert.True(t, w.Enqueue(1, func(context.Context) {}))
	assert.False(t, w.Enqueue(1, func(context.Context) {}))
	w.Start(context.Background())
	w.Stop()
}
