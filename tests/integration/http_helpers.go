package integration

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rjmacleod/sentinel/internal/config"
	"github.com/rjmacleod/sentinel/internal/database"
	"github.com/rjmacleod/sentinel/internal/handlers"
	"github.com/rjmacleod/sentinel/internal/routes"
	"github.com/rjmacleod/sentinel/internal/services"
	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
	pkglogger "github.com/rjmacleod/sentinel/pkg/logger"
)

// SentAlert represents a captured block notification
type SentAlert struct {
	IPAddress    string
	Score        int
	BlockedUntil time.Time
}

// MockAlertService captures block notifications for test assertions
type MockAlertService struct {
	Alerts []SentAlert
	mu     sync.Mutex
}

// NotifyBlock records the alert
func (m *MockAlertService) NotifyBlock(ctx context.Context, ipAddress string, score int, blockedUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, SentAlert{IPAddress: ipAddress, Score: score, BlockedUntil: blockedUntil})
	return nil
}

// AlertCount returns the number of captured alerts
func (m *MockAlertService) AlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

// TestServer wires the full HTTP stack against a test database
type TestServer struct {
	Router chi.Router
	Alerts *MockAlertService
}

// NewTestServer builds the router, services, and handlers over db
func NewTestServer(db *database.DB, riskCfg config.RiskConfig) *TestServer {
	logger := slog.New(slog.DiscardHandler)
	auditLogger := pkglogger.NewAuditLogger(logger)

	userRepo, attemptRepo, blockRepo := InitializeRepositories(db)

	alerts := &MockAlertService{}

	// No timing delay in tests; it only slows the suite down
	loginService := services.NewLoginService(
		attemptRepo, blockRepo, userRepo, alerts, nil, riskCfg, logger, auditLogger,
	)
	dashboardService := services.NewDashboardService(attemptRepo, blockRepo, logger)

	ipConfig := &pkghttp.IPConfig{}
	pagesHandler := handlers.NewPagesHandler()
	authHandler := handlers.NewAuthHandler(loginService, ipConfig)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	routes.RegisterRoutes(router, pagesHandler, authHandler, dashboardHandler, ipConfig)

	return &TestServer{Router: router, Alerts: alerts}
}

// PostLogin submits the login form from the given remote address
func (s *TestServer) PostLogin(username, password, remoteAddr string) *httptest.ResponseRecorder {
	return s.PostLoginWithHeaders(username, password, remoteAddr, nil)
}

// PostLoginWithHeaders submits the login form with extra request headers
func (s *TestServer) PostLoginWithHeaders(username, password, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "integration-test")
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

// GetJSON performs a GET request against the router
func (s *TestServer) GetJSON(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}
