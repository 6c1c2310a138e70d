package observability

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware logs every request and records HTTP metrics. route is the
// mux pattern, kept separate from the raw path to bound label cardinality.
func Middleware(logger *slog.Logger, metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}

		next.ServeHTTP(rec, hr)

		elapsed := time.Since(start)
		route := hr.Pattern

		if route == "" {
			route = "unmatched"
		}

		if metrics != nil {
			metrics.HTTPRequests.WithLabelValues(hr.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}

		logger.LogAttrs(hr.Context(), slog.LevelInfo, "http request",
			slog.String("method", hr.Method),
			slog.String("path", hr.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", elapsed),
		)
	})
}
