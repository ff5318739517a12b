// metrics.go — Prometheus HTTP-метрики Databrowser Gateway:
// db_requests_total, db_request_duration_seconds.
package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_requests_total",
			Help: "Общее количество HTTP-запросов к Databrowser Gateway",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Databrowser Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// tokenSegment — сегмент пути, похожий на UUID или токен Zarr, заменяется
// на {id} для предотвращения взрывного роста кардинальности.
var tokenSegment = regexp.MustCompile(`^[0-9a-fA-F-]{8,}(\.zarr)?$`)

func normalizePath(path string) string {
	segs := splitPath(path)
	for i, s := range segs {
		if tokenSegment.MatchString(s) {
			segs[i] = "{id}"
		}
	}
	return joinPath(segs)
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				out = append(out, path[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func joinPath(segs []string) string {
	out := ""
	for _, s := range segs {
		out += "/" + s
	}
	if out == "" {
		return "/"
	}
	return out
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Metrics возвращает HTTP middleware для сбора Prometheus метрик запросов.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}
