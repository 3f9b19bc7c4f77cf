// Package session keeps short-lived per-chat state in Redis: the flood
// throttle and the conversation step a chat is in.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttlePrefix = "throttle:"

// Throttler admits at most one update per chat per window.
type Throttler struct {
	client *redis.Client
	window time.Duration
}

// NewThrottler builds a throttler. A zero window admits everything.
func NewThrottler(client *redis.Client, window time.Duration) *Throttler {
	return &Throttler{client: client, window: window}
}

// Allow reports whether telegramID may be served now.
func (t *Throttler) Allow(ctx context.Context, telegramID int64) (bool, error) {
	if t.window <= 0 {
		return true, nil
	}
	ok, err := t.client.SetNX(ctx, fmt.Sprintf("%s%d", throttlePrefix, telegramID), 1, t.window).Result()
	if err != nil {
		return false, fmt.Errorf("throttle %d: %w", telegramID, err)
	}
	return ok, nil
}
