// Package metrics provides Prometheus instrumentation for the login service.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status bucket.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path, and status bucket.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LoginAttemptsTotal counts evaluated login attempts by risk level.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "login_attempts_total",
			Help:      "Total evaluated login attempts by risk level.",
		},
		[]string{"level"},
	)

	// LoginOutcomesTotal counts login responses by outcome.
	LoginOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "login_outcomes_total",
			Help:      "Total login responses by outcome (success, invalid-credentials, blocked, blocked-now).",
		},
		[]string{"outcome"},
	)

	// BlocksIssuedTotal counts blocks written to the block store.
	BlocksIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "blocks_issued_total",
		Help:      "Total address blocks issued after Attack verdicts.",
	})

	// DBAcquiredConns tracks connections currently checked out of the pool.
	DBAcquiredConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel", Name: "db_acquired_connections",
		Help: "Number of connections currently acquired from the pool.",
	})
	// DBIdleConns tracks idle pooled connections.
	DBIdleConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel", Name: "db_idle_connections",
		Help: "Number of idle connections in the pool.",
	})
	// DBTotalConns tracks total pooled connections.
	DBTotalConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel", Name: "db_total_connections",
		Help: "Total number of connections in the pool.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LoginAttemptsTotal,
		LoginOutcomesTotal,
		BlocksIssuedTotal,
		DBAcquiredConns,
		DBIdleConns,
		DBTotalConns,
		GoroutineCount,
	)
}

// StartPoolStatsCollector periodically samples pgxpool stats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
func StartPoolStatsCollector(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stat()
			DBAcquiredConns.Set(float64(stats.AcquiredConns()))
			DBIdleConns.Set(float64(stats.IdleConns()))
			DBTotalConns.Set(float64(stats.TotalConns()))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware records request counts and latencies for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern() // route pattern, not raw path (avoids cardinality explosion)
		}

		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, statusBucket(wrapped.Status())).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
