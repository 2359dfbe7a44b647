package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/rjmacleod/sentinel/internal/repositories"
)

// CleanupManager periodically removes expired block rows and attempt rows
// past their retention window. It is row hygiene only: block expiry is
// evaluated lazily at read time, so correctness never depends on this
// sweeper running.
type CleanupManager struct {
	attemptRepo *repositories.AttemptRepository
	blockRepo   *repositories.BlockRepository
	retention   time.Duration
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	attemptRepo *repositories.AttemptRepository,
	blockRepo *repositories.BlockRepository,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		attemptRepo: attemptRepo,
		blockRepo:   blockRepo,
		retention:   retention,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps expired blocks and attempts past retention
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now().UTC()

	expiredBlocks, err := cm.blockRepo.DeleteExpired(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to delete expired blocks", slog.Any("error", err))
	} else if expiredBlocks > 0 {
		cm.logger.Info("expired blocks removed", slog.Int64("rows_deleted", expiredBlocks))
	}

	oldAttempts, err := cm.attemptRepo.DeleteOlderThan(cleanupCtx, now.Add(-cm.retention))
	if err != nil {
		cm.logger.Error("failed to delete old attempts", slog.Any("error", err))
	} else if oldAttempts > 0 {
		cm.logger.Info("old attempts removed", slog.Int64("rows_deleted", oldAttempts))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
