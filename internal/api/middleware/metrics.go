// metrics.go — Prometheus HTTP метрики TK Labels Module.
// Регистрирует метрики: lc_http_requests_total, lc_http_request_duration_seconds.
// Лейбл path — шаблон маршрута chi, чтобы идентификаторы не раздували кардинальность.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lc_http_requests_total",
			Help: "Общее количество HTTP-запросов к TK Labels Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к TK Labels Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			// Шаблон маршрута известен только после роутинга
			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута chi или нормализованный путь.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath — запасной вариант для запросов вне роутера chi.
// Идентификаторы заменяются плейсхолдерами.
//
//	/api/v1/nodes/42/project          → /api/v1/nodes/{nodeID}/project
//	/api/v1/projects/abc              → /api/v1/projects/{projectID}
//	/api/v1/cache/projects/abc        → /api/v1/cache/projects/{projectID}
//	/api/v1/entities/node/42/project  → /api/v1/entities/{entityType}/{entityID}/project
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/v1/cache/projects":
		return path
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		return "other"
	}

	switch {
	case segments[2] == "nodes" && len(segments) == 5 && segments[4] == "project":
		return "/api/v1/nodes/{nodeID}/project"
	case segments[2] == "entities" && len(segments) == 6 && segments[5] == "project":
		return "/api/v1/entities/{entityType}/{entityID}/project"
	case segments[2] == "projects" && len(segments) == 4:
		return "/api/v1/projects/{projectID}"
	case segments[2] == "cache" && len(segments) == 5 && segments[3] == "projects":
		return "/api/v1/cache/projects/{projectID}"
	}
	return "other"
}
