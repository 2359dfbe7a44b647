package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rjmacleod/sentinel/internal/database"
	"github.com/rjmacleod/sentinel/internal/models"
)

// AttemptRepository is the append-only login attempt log. Rows are written
// once with their computed risk metadata and never updated; every read is a
// point-in-time snapshot over history strictly prior to the caller's request.
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Record appends a login attempt to the log
func (r *AttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (username, attempt_time, success, ip_address, user_agent, risk_score, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Username,
		attempt.AttemptTime,
		attempt.Success,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.RiskScore,
		attempt.RiskLevel,
	)

	return database.MapPostgresError(err)
}

// MostRecentTimestamp returns the latest attempt timestamp for an address,
// or nil if the address has no history
func (r *AttemptRepository) MostRecentTimestamp(ctx context.Context, ipAddress string) (*time.Time, error) {
	query := `
		SELECT attempt_time FROM login_attempts
		WHERE ip_address = $1
		ORDER BY attempt_time DESC, id DESC
		LIMIT 1
	`

	var ts time.Time
	err := r.db.Pool.QueryRow(ctx, query, ipAddress).Scan(&ts)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ts, nil
}

// CountSince returns the number of attempts (any outcome) from an address
// with attempt_time >= since
func (r *AttemptRepository) CountSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, err
}

// CountFailedSince returns the number of failed attempts from an address
// with attempt_time >= since
func (r *AttemptRepository) CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, ipAddress, since).Scan(&count)
	return count, err
}

// RecentUsernames returns the usernames of the most recent attempts from an
// address, most-recent first, up to limit
func (r *AttemptRepository) RecentUsernames(ctx context.Context, ipAddress string, limit int) ([]string, error) {
	query := `
		SELECT username FROM login_attempts
		WHERE ip_address = $1
		ORDER BY attempt_time DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, ipAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent usernames: %w", err)
	}
	defer rows.Close()

	usernames := make([]string, 0, limit)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		usernames = append(usernames, username)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return usernames, nil
}

// CountTotal returns the total number of recorded attempts
func (r *AttemptRepository) CountTotal(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts`).Scan(&count)
	return count, err
}

// CountFailed returns the total number of failed attempts
func (r *AttemptRepository) CountFailed(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM login_attempts WHERE success = false`).Scan(&count)
	return count, err
}

// CountByLevel returns attempt counts grouped by risk level. Attempts with
// no computed level are excluded.
func (r *AttemptRepository) CountByLevel(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT risk_level, COUNT(*) FROM login_attempts
		WHERE risk_level IS NOT NULL
		GROUP BY risk_level
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query level counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan level count: %w", err)
		}
		counts[level] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

// CountFlaggedAddresses returns the number of distinct addresses with at
// least one Suspicious or Attack attempt on record
func (r *AttemptRepository) CountFlaggedAddresses(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(DISTINCT ip_address) FROM login_attempts
		WHERE risk_level IN ('Suspicious', 'Attack')
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query).Scan(&count)
	return count, err
}

// ListRecent returns the most recent attempts, newest first, up to limit
func (r *AttemptRepository) ListRecent(ctx context.Context, limit int) ([]*models.AttemptSummary, error) {
	query := `
		SELECT username, attempt_time, success, ip_address, risk_score, risk_level
		FROM login_attempts
		ORDER BY attempt_time DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.AttemptSummary, 0, limit)
	for rows.Next() {
		var a models.AttemptSummary
		if err := rows.Scan(&a.Username, &a.AttemptTime, &a.Success, &a.IPAddress, &a.RiskScore, &a.RiskLevel); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return attempts, nil
}

// DeleteOlderThan removes attempts recorded before the cutoff. Used only by
// the retention sweeper; no read path depends on it.
func (r *AttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
