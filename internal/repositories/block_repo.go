package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rjmacleod/sentinel/internal/database"
	"github.com/rjmacleod/sentinel/internal/models"
)

// BlockRepository is the time-expiring block list for source addresses.
// Expiry is lazy: IsBlocked compares blocked_until against the caller's
// clock at read time, and no code path ever waits on a block ending.
type BlockRepository struct {
	db *database.DB
}

// NewBlockRepository creates a new BlockRepository
func NewBlockRepository(db *database.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// IsBlocked reports whether a live block exists for the address at the given
// instant
func (r *BlockRepository) IsBlocked(ctx context.Context, ipAddress string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM blocked_ips
			WHERE ip_address = $1 AND blocked_until > $2
		)
	`

	var blocked bool
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, now).Scan(&blocked)
	return blocked, err
}

// Block upserts a block for the address ending at until. A later block for
// the same address overwrites the earlier one; durations are never merged.
func (r *BlockRepository) Block(ctx context.Context, ipAddress string, until time.Time) error {
	query := `
		INSERT INTO blocked_ips (ip_address, blocked_until, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (ip_address) DO UPDATE SET blocked_until = EXCLUDED.blocked_until
	`

	_, err := r.db.Pool.Exec(ctx, query, ipAddress, until)
	return database.MapPostgresError(err)
}

// ActiveBlocks returns blocks still live at the given instant, soonest to
// expire last
func (r *BlockRepository) ActiveBlocks(ctx context.Context, now time.Time) ([]*models.IPBlock, error) {
	query := `
		SELECT ip_address, blocked_until, created_at FROM blocked_ips
		WHERE blocked_until > $1
		ORDER BY blocked_until DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.IPBlock
	for rows.Next() {
		var b models.IPBlock
		if err := rows.Scan(&b.IPAddress, &b.BlockedUntil, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return blocks, nil
}

// DeleteExpired removes block rows whose window has passed. Row hygiene for
// the sweeper; IsBlocked is correct whether or not this ever runs.
func (r *BlockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM blocked_ips WHERE blocked_until <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
