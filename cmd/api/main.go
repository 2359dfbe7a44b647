package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rjmacleod/sentinel/internal/auth"
	"github.com/rjmacleod/sentinel/internal/background"
	"github.com/rjmacleod/sentinel/internal/config"
	"github.com/rjmacleod/sentinel/internal/database"
	"github.com/rjmacleod/sentinel/internal/handlers"
	"github.com/rjmacleod/sentinel/internal/metrics"
	middlewareCustom "github.com/rjmacleod/sentinel/internal/middleware"
	"github.com/rjmacleod/sentinel/internal/models"
	"github.com/rjmacleod/sentinel/internal/repositories"
	"github.com/rjmacleod/sentinel/internal/routes"
	"github.com/rjmacleod/sentinel/internal/services"
	pkgauth "github.com/rjmacleod/sentinel/pkg/auth"
	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
	pkglogger "github.com/rjmacleod/sentinel/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewAttemptRepository(db)
	blockRepo := repositories.NewBlockRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		attemptRepo,
		blockRepo,
		cfg.Risk.AttemptRetention,
		cfg.Risk.CleanupInterval,
		logger,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	})

	// Operator block alerts via AWS SES (optional)
	var notifier services.BlockNotifier
	if cfg.Alert.Enabled {
		alertService, err := services.NewAWSSESAlertService(
			cfg.Alert.AWSRegion,
			cfg.Alert.FromAddress,
			cfg.Alert.ToAddress,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize alert service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = alertService
	}

	// Initialize services
	loginService := services.NewLoginService(
		attemptRepo,
		blockRepo,
		userRepo,
		notifier,
		timingDelay,
		cfg.Risk,
		logger,
		auditLogger,
	)
	dashboardService := services.NewDashboardService(attemptRepo, blockRepo, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	pagesHandler := handlers.NewPagesHandler()
	authHandler := handlers.NewAuthHandler(loginService, ipConfig)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger)

	// Seed users if configured
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureSeedUsers(seedCtx, userRepo, logger); err != nil {
		logger.Error("failed to seed users", slog.Any("error", err))
	}
	seedCancel()

	// Setup router
	// No RealIP middleware: it rewrites RemoteAddr from client-controlled
	// headers before any trust check. Client identity is resolved only by
	// pkghttp.ExtractClientIP against the trusted proxy list.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, pagesHandler, authHandler, dashboardHandler, ipConfig)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background tasks
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	go cleanupManager.Start(backgroundCtx)
	go metrics.StartPoolStatsCollector(backgroundCtx, db.Pool, 15*time.Second)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	backgroundCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureSeedUsers creates users listed in SEED_USERS ("name:password" pairs
// separated by commas) if they do not already exist
func ensureSeedUsers(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	seed := os.Getenv("SEED_USERS")
	if seed == "" {
		logger.Info("no SEED_USERS set, skipping user seeding")
		return nil
	}

	for _, pair := range strings.Split(seed, ",") {
		username, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || username == "" || password == "" {
			return fmt.Errorf("malformed SEED_USERS entry %q", pair)
		}

		_, err := userRepo.GetByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to check if user exists: %w", err)
		}

		hashedPassword, err := pkgauth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		if _, err := userRepo.Create(ctx, &models.User{
			Username:     username,
			PasswordHash: hashedPassword,
		}); err != nil {
			return fmt.Errorf("failed to create seed user: %w", err)
		}

		logger.Info("seed user created", slog.String("username", pkglogger.SanitizedUsername(username)))
	}

	return nil
}
