// Package server exposes the HTTP API: job submission, status and
// results, project listings, the leaderboard and operational endpoints.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sumatoshi-tech/repograde/internal/cache"
	"github.com/Sumatoshi-tech/repograde/internal/jobs"
	"github.com/Sumatoshi-tech/repograde/internal/observability"
	"github.com/Sumatoshi-tech/repograde/internal/store"
)

// Response cache TTLs.
const (
	ListTTL   = 30 * time.Second
	DetailTTL = 300 * time.Second
	ChartTTL  = 60 * time.Second
)

// chartSize is how many projects the chart endpoint returns.
const chartSize = 10

// Server wires the API handlers. cache may be nil; handlers then hit
// the store directly.
type Server struct {
	store   *store.Store
	cache   *cache.Cache
	jobs    *jobs.Manager
	metrics *observability.Metrics
	logger  *slog.Logger

	listTTL   time.Duration
	detailTTL time.Duration
	chartTTL  time.Duration
}

// New builds a Server.
func New(st *store.Store, c *cache.Cache, manager *jobs.Manager, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		store:     st,
		cache:     c,
		jobs:      manager,
		metrics:   metrics,
		logger:    logger.With("component", "server"),
		listTTL:   ListTTL,
		detailTTL: DetailTTL,
		chartTTL:  ChartTTL,
	}
}

// WithTTLs overrides the response cache TTLs. Non-positive values keep
// the defaults.
func (s *Server) WithTTLs(list, detail, chart time.Duration) *Server {
	if list > 0 {
		s.listTTL = list
	}

	if detail > 0 {
		s.detailTTL = detail
	}

	if chart > 0 {
		s.chartTTL = chart
	}

	return s
}

// Handler builds the routed handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze-repo", s.handleAnalyzeRepo)
	mux.HandleFunc("POST /api/batch-upload", s.handleBatchUpload)
	mux.HandleFunc("GET /api/analysis-status/{job_id}", s.handleAnalysisStatus)
	mux.HandleFunc("GET /api/analysis-result/{job_id}", s.handleAnalysisResult)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleProjectDetail)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/leaderboard/chart", s.handleLeaderboardChart)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/tech-stacks", s.handleTechStacks)

	mux.Handle("GET /healthz", observability.HealthHandler(observability.NamedCheck{
		Name:  "store",
		Check: s.store.Ping,
	}))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return observability.Middleware(s.logger, s.metrics, mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// cached serves key from the response cache, filling it from fetch on a
// miss. A nil cache or non-positive ttl disables caching.
func (s *Server) cached(w http.ResponseWriter, key string, ttl time.Duration, fetch func() (any, error)) {
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}

			w.Header().Set("Content-Type", "application/json")

			if _, err := w.Write(data); err != nil {
				s.logger.Warn("cached response write failed", "error", err)
			}

			return
		}

		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	body, err := fetch()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	data, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		s.writeError(w, http.StatusInternalServerError, marshalErr.Error())

		return
	}

	if s.cache != nil {
		s.cache.Set(key, data, ttl)
	}

	w.Header().Set("Content-Type", "application/json")

	if _, writeErr := w.Write(data); writeErr != nil {
		s.logger.Warn("response write failed", "error", writeErr)
	}
}
