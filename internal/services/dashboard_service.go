package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/rjmacleod/sentinel/internal/models"
	"github.com/rjmacleod/sentinel/internal/risk"
)

// AttemptReader defines the aggregate queries the dashboard needs
type AttemptReader interface {
	CountTotal(ctx context.Context) (int, error)
	CountFailed(ctx context.Context) (int, error)
	CountByLevel(ctx context.Context) (map[string]int, error)
	CountFlaggedAddresses(ctx context.Context) (int, error)
	ListRecent(ctx context.Context, limit int) ([]*models.AttemptSummary, error)
}

// BlockReader exposes the live block list
type BlockReader interface {
	ActiveBlocks(ctx context.Context, now time.Time) ([]*models.IPBlock, error)
}

// DashboardStats is the monitoring snapshot returned to the dashboard
type DashboardStats struct {
	TotalAttempts    int                      `json:"total_attempts"`
	FailedAttempts   int                      `json:"failed_attempts"`
	NormalCount      int                      `json:"normal_count"`
	SuspiciousCount  int                      `json:"suspicious_count"`
	AttackCount      int                      `json:"attack_count"`
	FlaggedAddresses int                      `json:"flagged_addresses"`
	ActiveBlocks     []*models.IPBlock        `json:"active_blocks"`
	RecentAttempts   []*models.AttemptSummary `json:"recent_attempts"`
}

// RecentAttemptLimit caps the dashboard's recent-attempt listing
const RecentAttemptLimit = 10

// DashboardService assembles the monitoring snapshot. Every call reads the
// current state of the attempt log; nothing is cached.
type DashboardService struct {
	attempts AttemptReader
	blocks   BlockReader
	logger   *slog.Logger
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(attempts AttemptReader, blocks BlockReader, logger *slog.Logger) *DashboardService {
	return &DashboardService{attempts: attempts, blocks: blocks, logger: logger}
}

// Stats returns the current dashboard snapshot
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	total, err := s.attempts.CountTotal(ctx)
	if err != nil {
		s.logger.Error("failed to count attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	failed, err := s.attempts.CountFailed(ctx)
	if err != nil {
		s.logger.Error("failed to count failed attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byLevel, err := s.attempts.CountByLevel(ctx)
	if err != nil {
		s.logger.Error("failed to count attempts by level", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	flagged, err := s.attempts.CountFlaggedAddresses(ctx)
	if err != nil {
		s.logger.Error("failed to count flagged addresses", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	blocks, err := s.blocks.ActiveBlocks(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to list active blocks", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	recent, err := s.attempts.ListRecent(ctx, RecentAttemptLimit)
	if err != nil {
		s.logger.Error("failed to list recent attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &DashboardStats{
		TotalAttempts:    total,
		FailedAttempts:   failed,
		NormalCount:      byLevel[string(risk.LevelNormal)],
		SuspiciousCount:  byLevel[string(risk.LevelSuspicious)],
		AttackCount:      byLevel[string(risk.LevelAttack)],
		FlaggedAddresses: flagged,
		ActiveBlocks:     blocks,
		RecentAttempts:   recent,
	}, nil
}
