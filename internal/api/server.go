// Package api exposes the filing store over a read-only HTTP surface
// for the dashboard and other downstream consumers.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-intel/internal/model"
	"github.com/sells-group/nonprofit-intel/internal/store"
)

// Server serves organization, filing, and prospect data.
type Server struct {
	store  store.Store
	logger *zap.Logger
}

func NewServer(s store.Store) *Server {
	return &Server{
		store:  s,
		logger: zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/organizations", s.handleListOrganizations)
	r.Get("/organizations/{ein}", s.handleGetOrganization)
	r.Get("/prospects", s.handleProspects)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.store.ListOrganizations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}
	s.writeJSON(w, http.StatusOK, orgs)
}

// organizationDetail is the full per-EIN view: identity plus the filing
// and metric history.
type organizationDetail struct {
	Organization model.Organization    `json:"organization"`
	Filings      []model.Filing        `json:"filings"`
	Metrics      []model.DerivedMetric `json:"metrics"`
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	ein := chi.URLParam(r, "ein")
	org, err := s.store.GetOrganization(r.Context(), ein)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if org == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "organization not found"})
		return
	}

	filings, err := s.store.ListFilingsByEIN(r.Context(), ein)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics, err := s.store.ListMetricsByEIN(r.Context(), ein)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, organizationDetail{
		Organization: *org,
		Filings:      filings,
		Metrics:      metrics,
	})
}

func (s *Server) handleProspects(w http.ResponseWriter, r *http.Request) {
	minScore := 0.0
	if v := r.URL.Query().Get("min_score"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_score"})
			return
		}
		minScore = parsed
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	prospects, err := s.store.TopProspects(r.Context(), minScore, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if prospects == nil {
		prospects = []store.Prospect{}
	}
	s.writeJSON(w, http.StatusOK, prospects)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
