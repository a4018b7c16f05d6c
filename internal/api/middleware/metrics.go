// metrics.go - Prometheus HTTP метрики Export Module.
// Регистрирует метрики: ex_http_requests_total, ex_http_request_duration_seconds.
// Бизнес-метрики (ex_exports_total, ex_artifacts_count и др.) регистрируются
// в сервисном слое и хранилищах.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ex_http_requests_total",
			Help: "Общее количество HTTP-запросов к Export Module",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ex_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Export Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// unmatchedRoute - метка пути для запросов, не попавших ни в один маршрут.
const unmatchedRoute = "unmatched"

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// В метку path попадает шаблон маршрута chi (/api/export/download/{filename}),
// а не фактический путь: имена файлов не раздувают кардинальность.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута, выбранного chi для запроса.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
