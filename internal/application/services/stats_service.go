package services

import (
	"context"

	"github.com/taskmaster/client/internal/domain/entities"
	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/ports"
)

var _ ports.StatsService = (*StatsService)(nil)

// StatsService retrieves task analytics
type StatsService struct {
	transport ports.Transport
	logger    *logger.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(transport ports.Transport, logger *logger.Logger) *StatsService {
	return &StatsService{
		transport: transport,
		logger:    logger.WithComponent("stats"),
	}
}

// GetGeneralStats retrieves statistics for the default period
func (s *StatsService) GetGeneralStats(ctx context.Context) (*entities.TaskStats, error) {
	var stats entities.TaskStats
	if err := s.transport.Do(ctx, "GET", "/statistics", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetAnalyticsStats retrieves statistics for the requested period
func (s *StatsService) GetAnalyticsStats(ctx context.Context, query entities.StatsQuery) (*entities.TaskStats, error) {
	if err := entities.Validate(query); err != nil {
		return nil, err
	}

	var stats entities.TaskStats
	if err := s.transport.Do(ctx, "GET", "/statistics", nil, query.Params(), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
