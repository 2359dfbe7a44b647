package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/rjmacleod/sentinel/internal/handlers"
	"github.com/rjmacleod/sentinel/internal/metrics"
	"github.com/rjmacleod/sentinel/internal/middleware"
	pkghttp "github.com/rjmacleod/sentinel/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	pagesHandler *handlers.PagesHandler,
	authHandler *handlers.AuthHandler,
	dashboardHandler *handlers.DashboardHandler,
	ipConfig *pkghttp.IPConfig,
) {
	rateLimitConfig := middleware.DefaultLoginRateLimit()

	router.Get("/", pagesHandler.Home)
	router.With(middleware.RateLimitByIP(rateLimitConfig, ipConfig)).Post("/login", authHandler.Login)

	router.Get("/dashboard", dashboardHandler.Page)
	router.Get("/api/dashboard", dashboardHandler.Stats)

	router.Handle("/metrics", metrics.Handler())
}
