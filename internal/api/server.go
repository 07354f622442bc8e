// Package api exposes the HTTP interface for the fishing-report service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/report"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/store"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/telemetry"
)

// Store is the read side of the persistence layer the API serves from.
type Store interface {
	ListReports(ctx context.Context, limit, offset int) ([]report.FishingReport, error)
	ReportsByMonth(ctx context.Context, month int) ([]report.FishingReport, error)
	ReportsBySpecies(ctx context.Context, species string) ([]report.FishingReport, error)
	Search(ctx context.Context, f store.SearchFilter) ([]report.FishingReport, error)
	GetStats(ctx context.Context) (store.Stats, error)
	SpeciesCounts(ctx context.Context) ([]store.SpeciesCount, error)
	LocationAggregates(ctx context.Context) ([]store.LocationStats, error)
	MonthlyAggregates(ctx context.Context) ([]store.MonthStats, error)
	Recommendations(ctx context.Context, month int, species string) ([]store.Recommendation, error)
}

// Config carries the server's HTTP-level settings.
type Config struct {
	AllowedOrigins []string
}

// Server wires HTTP handlers to the report store.
type Server struct {
	router chi.Router
	store  Store
	logger *zap.Logger

	// now is swappable so the recommendations default month is testable.
	now func() time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st Store, cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger,
		now:    time.Now,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(telemetry.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.listReports)
		r.Get("/search", s.searchReports)
		r.Get("/month/{month}", s.reportsByMonth)
		r.Get("/species/{species}", s.reportsBySpecies)
	})

	r.Get("/stats", s.stats)
	r.Get("/species", s.species)
	r.Get("/locations", s.locations)
	r.Get("/months", s.months)
	r.Get("/recommendations", s.recommendations)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Delavan Lake Fishing Reports API",
		"endpoints": map[string]string{
			"/reports":                   "Get all processed reports",
			"/reports/month/{month}":     "Get reports for a specific month (1-12)",
			"/reports/species/{species}": "Get reports for a specific species",
			"/reports/search":            "Search reports with filters",
			"/stats":                     "Get database statistics",
			"/locations":                 "Get location statistics",
			"/species":                   "Get list of all species",
		},
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit := clampedIntParam(r, "limit", 100, 1, 1000)
	offset := clampedIntParam(r, "offset", 0, 0, 1<<30)

	reports, err := s.store.ListReports(r.Context(), limit, offset)
	if err != nil {
		s.serverError(w, "list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) reportsByMonth(w http.ResponseWriter, r *http.Request) {
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Month must be between 1 and 12")
		return
	}

	reports, err := s.store.ReportsByMonth(r.Context(), month)
	if err != nil {
		s.serverError(w, "reports by month", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) reportsBySpecies(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ReportsBySpecies(r.Context(), chi.URLParam(r, "species"))
	if err != nil {
		s.serverError(w, "reports by species", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) searchReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.SearchFilter{
		Season:   q.Get("season"),
		Species:  q.Get("species"),
		Location: q.Get("location"),
		Weather:  q.Get("weather"),
		Limit:    clampedIntParam(r, "limit", 100, 1, 1000),
	}

	if raw := q.Get("month"); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Month must be between 1 and 12")
			return
		}
		f.Month = month
	}
	var badDepth bool
	f.MinDepth, badDepth = floatParam(q.Get("min_depth"))
	if badDepth {
		writeError(w, http.StatusBadRequest, "min_depth must be a number")
		return
	}
	f.MaxDepth, badDepth = floatParam(q.Get("max_depth"))
	if badDepth {
		writeError(w, http.StatusBadRequest, "max_depth must be a number")
		return
	}

	reports, err := s.store.Search(r.Context(), f)
	if err != nil {
		s.serverError(w, "search reports", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.serverError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) species(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.SpeciesCounts(r.Context())
	if err != nil {
		s.serverError(w, "species counts", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) locations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.LocationAggregates(r.Context())
	if err != nil {
		s.serverError(w, "location aggregates", err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) months(w http.ResponseWriter, r *http.Request) {
	months, err := s.store.MonthlyAggregates(r.Context())
	if err != nil {
		s.serverError(w, "monthly aggregates", err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	month := int(s.now().Month())
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Month must be between 1 and 12")
			return
		}
		month = m
	}

	recs, err := s.store.Recommendations(r.Context(), month, r.URL.Query().Get("species"))
	if err != nil {
		s.serverError(w, "recommendations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month":           month,
		"month_name":      report.MonthName(month),
		"recommendations": recs,
	})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("handler failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func clampedIntParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func floatParam(raw string) (*float64, bool) {
	if raw == "" {
		return nil, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, true
	}
	return &v, false
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
