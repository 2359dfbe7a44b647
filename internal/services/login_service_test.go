package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjmacleod/sentinel/internal/config"
	"github.com/rjmacleod/sentinel/internal/models"
	"github.com/rjmacleod/sentinel/internal/risk"
	pkgauth "github.com/rjmacleod/sentinel/pkg/auth"
	pkglogger "github.com/rjmacleod/sentinel/pkg/logger"
)

// mockAttemptLog returns canned history and captures recorded attempts.
type mockAttemptLog struct {
	lastTimestamp   *time.Time
	countInWindow   int
	failedInWindow  int
	recentUsernames []string

	recorded []*models.LoginAttempt

	recordErr error
	queryErr  error
}

func (m *mockAttemptLog) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recorded = append(m.recorded, attempt)
	return nil
}

func (m *mockAttemptLog) MostRecentTimestamp(ctx context.Context, ipAddress string) (*time.Time, error) {
	return m.lastTimestamp, m.queryErr
}

func (m *mockAttemptLog) CountSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	return m.countInWindow, m.queryErr
}

func (m *mockAttemptLog) CountFailedSince(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	return m.failedInWindow, m.queryErr
}

func (m *mockAttemptLog) RecentUsernames(ctx context.Context, ipAddress string, limit int) ([]string, error) {
	return m.recentUsernames, m.queryErr
}

type mockBlockStore struct {
	blocked bool

	blockedIP    string
	blockedUntil time.Time
	blockCalls   int

	isBlockedErr error
	blockErr     error
}

func (m *mockBlockStore) IsBlocked(ctx context.Context, ipAddress string, now time.Time) (bool, error) {
	return m.blocked, m.isBlockedErr
}

func (m *mockBlockStore) Block(ctx context.Context, ipAddress string, until time.Time) error {
	if m.blockErr != nil {
		return m.blockErr
	}
	m.blockCalls++
	m.blockedIP = ipAddress
	m.blockedUntil = until
	return nil
}

type mockCredentialStore struct {
	users    map[string]*models.User
	lookups  int
	queryErr error
}

func (m *mockCredentialStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.lookups++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	user, ok := m.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	return user, nil
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		BlockDuration:       10 * time.Minute,
		ContinuousWindow:    2 * time.Minute,
		FailWindow:          5 * time.Minute,
		RecentUsernameLimit: 5,
	}
}

func newTestService(t *testing.T, attempts *mockAttemptLog, blocks *mockBlockStore, users *mockCredentialStore, cfg config.RiskConfig) *LoginService {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	audit := pkglogger.NewAuditLogger(logger)
	svc := NewLoginService(attempts, blocks, users, nil, nil, cfg, logger, audit)
	return svc.WithClock(func() time.Time { return testTime })
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := pkgauth.HashPasswordWithCost(password, 4)
	require.NoError(t, err)
	return hash
}

func TestLogin_FirstAttemptSucceedsWithZeroScore(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: mustHash(t, "correct horse")},
	}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "alice", "correct horse", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, risk.LevelNormal, result.Level)

	require.Len(t, attempts.recorded, 1)
	rec := attempts.recorded[0]
	assert.True(t, rec.Success)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "192.0.2.1", rec.IPAddress)
	require.NotNil(t, rec.RiskScore)
	assert.Equal(t, 0, *rec.RiskScore)
	require.NotNil(t, rec.RiskLevel)
	assert.Equal(t, "Normal", *rec.RiskLevel)

	assert.Zero(t, blocks.blockCalls)
}

func TestLogin_WrongPasswordRecordedAsFailure(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: mustHash(t, "correct horse")},
	}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "alice", "wrong", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
	require.Len(t, attempts.recorded, 1)
	assert.False(t, attempts.recorded[0].Success)
}

func TestLogin_UnknownUserIndistinguishableFromWrongPassword(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "nobody", "whatever", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
	require.Len(t, attempts.recorded, 1)
	assert.False(t, attempts.recorded[0].Success)
}

func TestLogin_BlockedAddressRejectedWithoutCredentialCheck(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{blocked: true}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlocked, result.Outcome)
	assert.Zero(t, users.lookups, "blocked requests must not reach the credential store")
	assert.Empty(t, attempts.recorded, "blocked requests leave no attempt row")
}

func TestLogin_BlockStoreErrorFailsClosed(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{isBlockedErr: errors.New("connection refused")}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	_, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Zero(t, users.lookups)
}

func TestLogin_RapidBurstTriggersBlock(t *testing.T) {
	// History: last attempt 500ms ago, 4 prior attempts inside the burst
	// window, 5 recent failures. Score: 20 + 30 + 25 = 75, an Attack.
	last := testTime.Add(-500 * time.Millisecond)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   4,
		failedInWindow:  5,
		recentUsernames: []string{"alice", "alice", "alice", "alice", "alice"},
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlockedNow, result.Outcome)
	assert.Equal(t, 75, result.Score)
	assert.Equal(t, risk.LevelAttack, result.Level)

	require.Equal(t, 1, blocks.blockCalls)
	assert.Equal(t, "192.0.2.1", blocks.blockedIP)
	assert.Equal(t, testTime.Add(10*time.Minute), blocks.blockedUntil)

	// Default policy: the triggering attempt is not logged
	assert.Empty(t, attempts.recorded)
}

func TestLogin_EnumerationBurstScoresEighty(t *testing.T) {
	// Fourth attempt in the window, three distinct usernames in play, five
	// recent failures, but a calm 30s gap: 30 + 25 + 25 = 80, an Attack.
	last := testTime.Add(-30 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   3,
		failedInWindow:  5,
		recentUsernames: []string{"alice", "bob", "alice"},
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "carol", "pw", "1.2.3.4", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlockedNow, result.Outcome)
	assert.Equal(t, 80, result.Score)
	assert.Equal(t, risk.LevelAttack, result.Level)
	require.Equal(t, 1, blocks.blockCalls)
	assert.Empty(t, attempts.recorded, "the triggering attempt is not appended")
}

// expiringBlockStore evaluates IsBlocked against the stored deadline, so
// block expiry can be exercised with an advancing clock.
type expiringBlockStore struct {
	until time.Time
}

func (m *expiringBlockStore) IsBlocked(ctx context.Context, ipAddress string, now time.Time) (bool, error) {
	return m.until.After(now), nil
}

func (m *expiringBlockStore) Block(ctx context.Context, ipAddress string, until time.Time) error {
	m.until = until
	return nil
}

func TestLogin_BlockExpiresLazily(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &expiringBlockStore{until: testTime.Add(10 * time.Minute)}
	users := &mockCredentialStore{users: map[string]*models.User{}}

	logger := slog.New(slog.DiscardHandler)
	audit := pkglogger.NewAuditLogger(logger)
	svc := NewLoginService(attempts, blocks, users, nil, nil, testRiskConfig(), logger, audit)

	// Nine minutes in: still blocked
	svc.WithClock(func() time.Time { return testTime.Add(9 * time.Minute) })
	result, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, result.Outcome)

	// Eleven minutes in: the block has lapsed and the attempt is evaluated
	svc.WithClock(func() time.Time { return testTime.Add(11 * time.Minute) })
	result, err = svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
	assert.Len(t, attempts.recorded, 1)
}

func TestLogin_RecordBlockedKeepsTriggeringAttempt(t *testing.T) {
	last := testTime.Add(-500 * time.Millisecond)
	attempts := &mockAttemptLog{
		lastTimestamp:  &last,
		countInWindow:  4,
		failedInWindow: 5,
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}

	cfg := testRiskConfig()
	cfg.RecordBlocked = true
	svc := newTestService(t, attempts, blocks, users, cfg)

	result, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlockedNow, result.Outcome)
	require.Len(t, attempts.recorded, 1)
	require.NotNil(t, attempts.recorded[0].RiskLevel)
	assert.Equal(t, "Attack", *attempts.recorded[0].RiskLevel)
}

func TestLogin_UsernameSprayingAloneStaysNormal(t *testing.T) {
	// Three distinct usernames across recent history, everything else calm:
	// 25 points sits inside the Normal band, attempt still recorded.
	last := testTime.Add(-30 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   2,
		failedInWindow:  2,
		recentUsernames: []string{"alice", "bob"},
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "carol", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
	assert.Equal(t, 25, result.Score)
	assert.Equal(t, risk.LevelNormal, result.Level)
	assert.Zero(t, blocks.blockCalls)
	require.Len(t, attempts.recorded, 1)
}

func TestLogin_SprayingWithRapidRetryFlaggedSuspicious(t *testing.T) {
	// Distinct usernames plus a sub-2s retry: 45 points crosses into
	// Suspicious without triggering a block.
	last := testTime.Add(-1 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   2,
		failedInWindow:  2,
		recentUsernames: []string{"alice", "bob"},
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "carol", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
	assert.Equal(t, 45, result.Score)
	assert.Equal(t, risk.LevelSuspicious, result.Level)
	assert.Zero(t, blocks.blockCalls)
	require.Len(t, attempts.recorded, 1)
	require.NotNil(t, attempts.recorded[0].RiskLevel)
	assert.Equal(t, "Suspicious", *attempts.recorded[0].RiskLevel)
}

func TestLogin_SuccessFromSuspiciousAddressStillSucceeds(t *testing.T) {
	// A valid password from an address with some noise: Suspicious level
	// flags the row but does not turn away the legitimate user.
	last := testTime.Add(-1 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   1,
		failedInWindow:  2,
		recentUsernames: []string{"alice", "alice", "bob"},
	}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{
		"alice": {Username: "alice", PasswordHash: mustHash(t, "correct horse")},
	}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	result, err := svc.Login(context.Background(), "alice", "correct horse", "192.0.2.1", "test-agent")
	require.NoError(t, err)

	// time gap < 2s only: 20 points
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 20, result.Score)
	assert.Equal(t, risk.LevelNormal, result.Level)
	require.Len(t, attempts.recorded, 1)
	assert.True(t, attempts.recorded[0].Success)
}

func TestLogin_BlockWriteErrorFailsRequest(t *testing.T) {
	last := testTime.Add(-500 * time.Millisecond)
	attempts := &mockAttemptLog{
		lastTimestamp:  &last,
		countInWindow:  4,
		failedInWindow: 5,
	}
	blocks := &mockBlockStore{blockErr: errors.New("connection refused")}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	_, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLogin_RecordErrorFailsRequest(t *testing.T) {
	attempts := &mockAttemptLog{recordErr: errors.New("disk full")}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	_, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLogin_FeatureQueryErrorFailsRequest(t *testing.T) {
	attempts := &mockAttemptLog{queryErr: errors.New("connection refused")}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}
	svc := newTestService(t, attempts, blocks, users, testRiskConfig())

	_, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLogin_SerializeByAddressStillCompletes(t *testing.T) {
	attempts := &mockAttemptLog{}
	blocks := &mockBlockStore{}
	users := &mockCredentialStore{users: map[string]*models.User{}}

	cfg := testRiskConfig()
	cfg.SerializeByAddress = true
	svc := newTestService(t, attempts, blocks, users, cfg)

	result, err := svc.Login(context.Background(), "alice", "pw", "192.0.2.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidCredentials, result.Outcome)
}

func TestExtractFeatures_HistoryOnly(t *testing.T) {
	last := testTime.Add(-90 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   3,
		failedInWindow:  2,
		recentUsernames: []string{"alice", "bob", "alice"},
	}
	svc := newTestService(t, attempts, &mockBlockStore{}, &mockCredentialStore{}, testRiskConfig())

	f, err := svc.extractFeatures(context.Background(), "carol", "192.0.2.1", testTime)
	require.NoError(t, err)

	require.NotNil(t, f.TimeGap)
	assert.Equal(t, 90*time.Second, *f.TimeGap)
	assert.Equal(t, 4, f.ContinuousAttempts, "current attempt counts toward the burst window")
	assert.Equal(t, 3, f.UniqueUsernames, "current username joins the distinct set")
	assert.Equal(t, 2, f.FailCount)
}

func TestExtractFeatures_Idempotent(t *testing.T) {
	last := testTime.Add(-45 * time.Second)
	attempts := &mockAttemptLog{
		lastTimestamp:   &last,
		countInWindow:   2,
		failedInWindow:  1,
		recentUsernames: []string{"alice", "bob"},
	}
	svc := newTestService(t, attempts, &mockBlockStore{}, &mockCredentialStore{}, testRiskConfig())

	first, err := svc.extractFeatures(context.Background(), "alice", "192.0.2.1", testTime)
	require.NoError(t, err)
	second, err := svc.extractFeatures(context.Background(), "alice", "192.0.2.1", testTime)
	require.NoError(t, err)

	assert.Equal(t, first, second, "no writes between reads, features must match")
}

func TestExtractFeatures_EmptyHistory(t *testing.T) {
	attempts := &mockAttemptLog{}
	svc := newTestService(t, attempts, &mockBlockStore{}, &mockCredentialStore{}, testRiskConfig())

	f, err := svc.extractFeatures(context.Background(), "alice", "192.0.2.1", testTime)
	require.NoError(t, err)

	assert.Nil(t, f.TimeGap)
	assert.Equal(t, 1, f.ContinuousAttempts)
	assert.Equal(t, 1, f.UniqueUsernames)
	assert.Equal(t, 0, f.FailCount)
	assert.Equal(t, 0, risk.Score(f))
}
