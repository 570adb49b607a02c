package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/metrics"
	"github.com/sellerhub/ranking-crawler/internal/ranking"
	"github.com/sellerhub/ranking-crawler/internal/service"
)

// Server wires HTTP handlers to the ranking service.
type Server struct {
	router   chi.Router
	rankings *service.Rankings
	logger   *zap.Logger
}

// Options controls cross-cutting server behavior.
type Options struct {
	AuthEnabled bool
	APIKey      string

	// RequestTimeout bounds every request, including synchronous scrapes
	// triggered by the today endpoint.
	RequestTimeout time.Duration
}

// NewServer constructs a Server with middleware and routes.
func NewServer(rankings *service.Rankings, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		rankings: rankings,
		logger:   logger,
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 180 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	if opts.AuthEnabled {
		r.Use(apiKeyMiddleware(opts.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/rankings", func(r chi.Router) {
			r.Get("/", s.listRankings)
			r.Get("/today/{category}", s.todayRankings)
			r.Post("/scrape/{category}", s.scrapeCategory)
			r.Route("/{ranking_id}", func(r chi.Router) {
				r.Get("/", s.getRanking)
				r.Delete("/", s.deleteRanking)
				r.Get("/export", s.exportRanking)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listRankings(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := s.rankings.List(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rankings": snaps})
}

func (s *Server) getRanking(w http.ResponseWriter, r *http.Request) {
	id, err := rankingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.rankings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) todayRankings(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	skip := intQuery(r, "skip", 0)
	limit := intQuery(r, "limit", 100)

	snaps, err := s.rankings.Today(r.Context(), category, skip, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rankings": snaps})
}

func (s *Server) scrapeCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	snap, err := s.rankings.Scrape(r.Context(), category)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) deleteRanking(w http.ResponseWriter, r *http.Request) {
	id, err := rankingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.rankings.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ranking snapshot deleted"})
}

func (s *Server) exportRanking(w http.ResponseWriter, r *http.Request) {
	id, err := rankingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, filename, err := s.rankings.Export(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		s.logger.Error("workbook write failed", zap.Error(err))
	}
}

// writeServiceError maps sentinel errors onto HTTP statuses. Infrastructure
// failures surface as coarse-grained upstream errors; no partial result is
// presented as complete.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ranking.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ranking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ranking.ErrNoDataToday):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, ranking.ErrScrapeFailed):
		s.logger.Error("scrape failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "scrape failed")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func rankingID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "ranking_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ranking id %q", raw)
	}
	return id, nil
}

func listOptionsFromQuery(r *http.Request) (ranking.ListOptions, error) {
	opts := ranking.ListOptions{
		Category: r.URL.Query().Get("category"),
		Skip:     intQuery(r, "skip", 0),
		Limit:    intQuery(r, "limit", 100),
		SortBy:   ranking.SortByCreated,
	}
	if opts.Skip < 0 {
		return ranking.ListOptions{}, errors.New("skip must be >= 0")
	}
	if opts.Limit <= 0 {
		return ranking.ListOptions{}, errors.New("limit must be > 0")
	}

	switch sortBy := r.URL.Query().Get("sort_by"); sortBy {
	case "", ranking.SortByCreated:
	case ranking.SortByUpdated:
		opts.SortBy = ranking.SortByUpdated
	default:
		return ranking.ListOptions{}, fmt.Errorf("invalid sort_by %q", sortBy)
	}

	switch order := r.URL.Query().Get("sort_order"); order {
	case "", "desc":
	case "asc":
		opts.Ascending = true
	default:
		return ranking.ListOptions{}, fmt.Errorf("invalid sort_order %q", order)
	}
	return opts, nil
}

func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

// RequestIDFromContext returns the request id injected by the middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
