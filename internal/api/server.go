// Package api exposes the grading engine over HTTP, mirroring the
// combined_reports contract of the reporting layer.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fairview-ems/aoi-grader/internal/config"
	"github.com/fairview-ems/aoi-grader/internal/grading"
	"github.com/fairview-ems/aoi-grader/internal/report"
	"github.com/fairview-ems/aoi-grader/internal/store"
)

// Server handles grading requests. The store is optional; when present
// every graded batch is recorded as a run.
type Server struct {
	cfg   *config.Config
	alpha grading.GapDiscountPolicy
	runs  store.Store
}

// NewServer builds a Server. runs may be nil to disable run history.
func NewServer(cfg *config.Config, alpha grading.GapDiscountPolicy, runs store.Store) *Server {
	if alpha == nil {
		alpha = grading.DefaultGapDiscount()
	}
	return &Server{cfg: cfg, alpha: alpha, runs: runs}
}

// Router assembles the HTTP routes with logging, CORS, panic recovery,
// and a token-bucket rate limit.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst))

	r.Get("/health", s.handleHealth)
	r.Post("/grades", s.handleGrades)
	r.Post("/breakdown", s.handleBreakdown)

	return r
}

// rateLimit applies a shared token bucket across all requests; zero or
// negative limits disable it.
func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// gradeRequest is the body of POST /grades and POST /breakdown. Row
// values are arbitrary JSON; the ingestion layer coerces them.
type gradeRequest struct {
	CombinedReports []map[string]any `json:"combined_reports"`
	KSeverity       *float64         `json:"k_severity"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	summary, _, ok := s.compute(w, r, "api:grades")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"grades": summary,
		"count":  len(summary),
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	summary, breakdown, ok := s.compute(w, r, "api:breakdown")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"breakdown":      breakdown,
		"grades_summary": summary,
		"count":          len(breakdown),
	})
}

// compute decodes the request and runs the engine. Structural errors
// (unparseable body) are 400s; malformed row values degrade to neutral
// defaults per the engine's contract and never fail the request.
func (s *Server) compute(w http.ResponseWriter, r *http.Request, source string) ([]grading.OperatorGrade, []grading.BreakdownRow, bool) {
	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}

	k := s.cfg.Grading.KSeverity
	if req.KSeverity != nil {
		k = *req.KSeverity
	}

	rows := report.Decode(req.CombinedReports, report.DecodeOptions{
		Columns:       s.cfg.Report.Columns,
		IgnorePhrases: s.cfg.Grading.IgnorePhrases,
	})
	grader := grading.New(
		grading.WithSeverity(k),
		grading.WithGapDiscount(s.alpha),
	)
	summary, breakdown := grader.Compute(rows)

	zap.L().Info("graded batch",
		zap.String("source", source),
		zap.Int("rows", len(rows)),
		zap.Int("operators", len(summary)),
		zap.Float64("k_severity", k),
	)

	if s.runs != nil {
		run := store.NewRun(source, k, len(rows), summary)
		if err := s.runs.SaveRun(r.Context(), run); err != nil {
			zap.L().Warn("save run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}

	return summary, breakdown, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
