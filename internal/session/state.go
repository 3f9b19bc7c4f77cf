package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Step is where a chat is in a multi-message conversation.
type Step string

const (
	StepNone              Step = ""
	StepCreatingTicket    Step = "creating_ticket"
	StepAwaitingPromoteID Step = "awaiting_promote_id"
)

const (
	statePrefix = "state:"
	stateTTL    = 24 * time.Hour

	fieldStep = "step"
)

// State is the stored conversation state of one chat.
type State struct {
	Step Step
	Data map[string]string
}

// StateStore persists conversation state as a Redis hash per chat.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore builds a store whose entries expire after a day of silence.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client, ttl: stateTTL}
}

func stateKey(chatID int64) string {
	return fmt.Sprintf("%s%d", statePrefix, chatID)
}

// Get returns the chat's state; a chat with no state is at StepNone.
func (s *StateStore) Get(ctx context.Context, chatID int64) (State, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(chatID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("load state %d: %w", chatID, err)
	}
	if len(fields) == 0 {
		return State{}, nil
	}
	st := State{Step: Step(fields[fieldStep]), Data: map[string]string{}}
	for k, v := range fields {
		if k != fieldStep {
			st.Data[k] = v
		}
	}
	return st, nil
}

// Set replaces the chat's state and refreshes its TTL.
func (s *StateStore) Set(ctx context.Context, chatID int64, st State) error {
	key := stateKey(chatID)
	values := map[string]any{fieldStep: string(st.Step)}
	for k, v := range st.Data {
		values[k] = v
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state %d: %w", chatID, err)
	}
	return nil
}

// Clear drops the chat's state.
func (s *StateStore) Clear(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, stateKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clear state %d: %w", chatID, err)
	}
	return nil
}
