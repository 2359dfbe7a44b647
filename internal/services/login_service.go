package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rjmacleod/sentinel/internal/auth"
	"github.com/rjmacleod/sentinel/internal/config"
	"github.com/rjmacleod/sentinel/internal/metrics"
	"github.com/rjmacleod/sentinel/internal/models"
	"github.com/rjmacleod/sentinel/internal/risk"
	"github.com/rjmacleod/sentinel/internal/syncutil"
	pkgauth "github.com/rjmacleod/sentinel/pkg/auth"
	pkglogger "github.com/rjmacleod/sentinel/pkg/logger"
)

// AttemptLog defines the interface for the append-only login attempt store
type AttemptLog interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	MostRecentTimestamp(ctx context.Context, ipAddress string) (*time.Time, error)
	CountSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
	CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error)
	RecentUsernames(ctx context.Context, ipAddress string, limit int) ([]string, error)
}

// BlockStore defines the interface for the time-expiring address block list
type BlockStore interface {
	IsBlocked(ctx context.Context, ipAddress string, now time.Time) (bool, error)
	Block(ctx context.Context, ipAddress string, until time.Time) error
}

// CredentialStore defines the interface for username/password-hash lookup
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// BlockNotifier is told about new blocks so an operator can be alerted.
// Delivery is best-effort and never delays or fails the request.
type BlockNotifier interface {
	NotifyBlock(ctx context.Context, ipAddress string, score int, blockedUntil time.Time) error
}

// Outcome is the terminal state of one login evaluation
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeInvalidCredentials Outcome = "invalid-credentials"
	OutcomeBlocked            Outcome = "blocked"
	OutcomeBlockedNow         Outcome = "blocked-now"
)

// LoginResult carries the outcome of a login evaluation back to the handler
type LoginResult struct {
	Outcome  Outcome
	Username string
	Score    int
	Level    risk.Level
}

// LoginService runs the per-request login pipeline: block check, credential
// check, feature extraction, scoring, then the block-or-record decision.
// It holds no per-request state of its own.
type LoginService struct {
	attempts AttemptLog
	blocks   BlockStore
	users    CredentialStore
	notifier BlockNotifier
	timing   *auth.TimingDelay
	cfg      config.RiskConfig
	locks    *syncutil.ShardedMutex
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	now      func() time.Time
}

// NewLoginService creates a new LoginService. notifier may be nil.
func NewLoginService(
	attempts AttemptLog,
	blocks BlockStore,
	users CredentialStore,
	notifier BlockNotifier,
	timing *auth.TimingDelay,
	cfg config.RiskConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		attempts: attempts,
		blocks:   blocks,
		users:    users,
		notifier: notifier,
		timing:   timing,
		cfg:      cfg,
		locks:    &syncutil.ShardedMutex{},
		logger:   logger,
		audit:    audit,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	s.now = now
	return s
}

// Login evaluates one login request. The attempt is scored against the
// address's history as it existed before this request; only then is the
// attempt itself recorded (or, on an Attack verdict, a block written).
// Storage failures fail closed: a request that cannot be evaluated is
// rejected, never waved through.
func (s *LoginService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*LoginResult, error) {
	now := s.now().UTC()

	// 1. Block check. If the block store cannot answer, refuse the request
	// rather than skipping the check.
	blocked, err := s.blocks.IsBlocked(ctx, ipAddress, now)
	if err != nil {
		s.logger.Error("failed to query block store", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if blocked {
		s.logger.Info("login rejected: address blocked", slog.String("ip_address", ipAddress))
		s.audit.LogLoginAttempt(pkglogger.AuditEvent{
			EventType:     "login_rejected",
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: "address_blocked",
		})
		metrics.LoginOutcomesTotal.WithLabelValues(string(OutcomeBlocked)).Inc()
		return &LoginResult{Outcome: OutcomeBlocked, Username: username}, nil
	}

	// 2. Credential check. Unknown username and wrong password are
	// indistinguishable to the caller.
	success, err := s.verifyCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}

	// 3-5. Feature extraction through decision, optionally serialized per
	// address to close the concurrent-burst race.
	if s.cfg.SerializeByAddress {
		unlock := s.locks.Lock(ipAddress)
		defer unlock()
	}

	features, err := s.extractFeatures(ctx, username, ipAddress, now)
	if err != nil {
		s.logger.Error("failed to extract risk features", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	score := risk.Score(features)
	level := risk.LevelForScore(score)
	metrics.LoginAttemptsTotal.WithLabelValues(string(level)).Inc()

	if level == risk.LevelAttack {
		return s.blockAddress(ctx, username, ipAddress, userAgent, now, success, score, level)
	}

	attempt := &models.LoginAttempt{
		Username:    username,
		AttemptTime: now,
		Success:     success,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		RiskScore:   &score,
	}
	levelStr := string(level)
	attempt.RiskLevel = &levelStr

	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	outcome := OutcomeInvalidCredentials
	if success {
		outcome = OutcomeSuccess
	}
	metrics.LoginOutcomesTotal.WithLabelValues(string(outcome)).Inc()

	s.audit.LogLoginAttempt(pkglogger.AuditEvent{
		EventType: "login_evaluated",
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   success,
		RiskScore: score,
		RiskLevel: string(level),
	})

	return &LoginResult{Outcome: outcome, Username: username, Score: score, Level: level}, nil
}

// verifyCredentials resolves the username and compares the password hash.
// A missing user yields success=false, not an error, and the timing delay
// hides the skipped bcrypt compare.
func (s *LoginService) verifyCredentials(ctx context.Context, username, password string) (bool, error) {
	start := time.Now()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if s.timing != nil {
				s.timing.WaitFrom(start, false)
			}
			return false, nil
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	success := pkgauth.ComparePassword(user.PasswordHash, password) == nil
	if s.timing != nil {
		s.timing.WaitFrom(start, success)
	}
	return success, nil
}

// extractFeatures derives the four risk inputs from history strictly prior
// to the current attempt.
func (s *LoginService) extractFeatures(ctx context.Context, username, ipAddress string, now time.Time) (risk.Features, error) {
	var f risk.Features

	last, err := s.attempts.MostRecentTimestamp(ctx, ipAddress)
	if err != nil {
		return f, err
	}
	if last != nil {
		gap := now.Sub(*last)
		f.TimeGap = &gap
	}

	prior, err := s.attempts.CountSince(ctx, ipAddress, now.Add(-s.cfg.ContinuousWindow))
	if err != nil {
		return f, err
	}
	// The attempt being evaluated counts toward the burst window
	f.ContinuousAttempts = prior + 1

	recent, err := s.attempts.RecentUsernames(ctx, ipAddress, s.cfg.RecentUsernameLimit)
	if err != nil {
		return f, err
	}
	f.UniqueUsernames = countDistinct(append(recent, username))

	fails, err := s.attempts.CountFailedSince(ctx, ipAddress, now.Add(-s.cfg.FailWindow))
	if err != nil {
		return f, err
	}
	f.FailCount = fails

	return f, nil
}

// blockAddress handles an Attack verdict: upsert the block, optionally keep
// the triggering attempt in the log, alert the operator, reject the request.
func (s *LoginService) blockAddress(ctx context.Context, username, ipAddress, userAgent string, now time.Time, success bool, score int, level risk.Level) (*LoginResult, error) {
	until := now.Add(s.cfg.BlockDuration)

	if err := s.blocks.Block(ctx, ipAddress, until); err != nil {
		s.logger.Error("failed to write address block", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metrics.BlocksIssuedTotal.Inc()
	metrics.LoginOutcomesTotal.WithLabelValues(string(OutcomeBlockedNow)).Inc()
	s.audit.LogBlock(ipAddress, until, score)

	if s.cfg.RecordBlocked {
		levelStr := string(level)
		attempt := &models.LoginAttempt{
			Username:    username,
			AttemptTime: now,
			Success:     success,
			IPAddress:   ipAddress,
			UserAgent:   userAgent,
			RiskScore:   &score,
			RiskLevel:   &levelStr,
		}
		if err := s.attempts.Record(ctx, attempt); err != nil {
			// The block is already in place; losing the audit row is not
			// worth failing the rejection
			s.logger.Error("failed to record blocked attempt", slog.Any("error", err))
		}
	}

	if s.notifier != nil {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.NotifyBlock(notifyCtx, ipAddress, score, until); err != nil {
				s.logger.Error("failed to send block alert", slog.Any("error", err))
			}
		}()
	}

	s.logger.Warn("address blocked",
		slog.String("ip_address", ipAddress),
		slog.Int("risk_score", score),
		slog.Time("blocked_until", until))

	return &LoginResult{Outcome: OutcomeBlockedNow, Username: username, Score: score, Level: level}, nil
}

// countDistinct returns the number of distinct strings in values
func countDistinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
