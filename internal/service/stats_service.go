package service

import (
	"context"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

const statsWindow = 7 * 24 * time.Hour

// StatsService serves the moderator and global statistics views.
type StatsService struct {
	txRunner
}

// NewStatsService constructs the service on the lifecycle service's store and clock.
func NewStatsService(lifecycle *LifecycleService) *StatsService {
	return &StatsService{txRunner: lifecycle.txRunner}
}

// ModeratorStats summarises one moderator's workload.
func (s *StatsService) ModeratorStats(ctx context.Context, moderatorID int64) (*domain.ModeratorStats, error) {
	moderator, err := s.store.Users().GetByID(ctx, moderatorID)
	if err != nil {
		return nil, notFound("moderator", moderatorID, err)
	}
	stats, err := s.store.Stats().ModeratorStats(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	stats.Moderator = *moderator
	return stats, nil
}

// GlobalStats summarises the whole desk for the last seven days.
func (s *StatsService) GlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	return s.store.Stats().GlobalStats(ctx, s.clock.Now().Add(-statsWindow))
}
