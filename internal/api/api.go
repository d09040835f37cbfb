package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/catalog"
	"github.com/raffaelramalhorosa/econdash/internal/dataset"
	"github.com/raffaelramalhorosa/econdash/internal/edgecache"
	"github.com/raffaelramalhorosa/econdash/internal/models"
)

// FeedService serves category and aggregate feeds. *aggregator.Service
// satisfies it.
type FeedService interface {
	Feeds(ctx context.Context, name string, force bool) (models.FeedResponse, error)
	Status() []models.CategoryStatus
}

// DatasetService serves proxied JSON datasets. *dataset.Service satisfies it.
type DatasetService interface {
	Get(ctx context.Context, name string) (dataset.Result, error)
}

// Server holds dependencies for the HTTP handlers.
type Server struct {
	feeds    FeedService
	datasets DatasetService
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

// Options configures the middleware around the routes.
type Options struct {
	// Edge, when set, caches successful GET responses in front of every route.
	Edge           *edgecache.Cache
	HandlerTimeout time.Duration
}

// New wires up routes and returns a ready-to-use Server.
func New(feeds FeedService, datasets DatasetService, opts Options, logger *slog.Logger) *Server {
	srv := &Server{feeds: feeds, datasets: datasets, logger: logger, mux: http.NewServeMux()}
	srv.routes()

	var h http.Handler = srv.mux
	if opts.Edge != nil {
		h = opts.Edge.Middleware(h)
	}
	if opts.HandlerTimeout > 0 {
		h = withTimeout(opts.HandlerTimeout, h)
	}
	srv.handler = srv.recoverer(h)
	return srv
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ---------- Routes ----------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/categories", s.handleCategories)

	s.mux.HandleFunc("GET /api/feeds", s.handleFeeds)
	s.mux.HandleFunc("GET /api/feeds/{category}", s.handleFeeds)

	s.mux.HandleFunc("GET /api/data/{name}", s.handleDataset)
}

// ---------- Handlers ----------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.feeds.Status()})
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("category")
	if name == "" {
		name = catalog.All
	}

	resp, err := s.feeds.Feeds(r.Context(), name, edgecache.Bypass(r))
	if errors.Is(err, catalog.ErrUnknownCategory) {
		JSONError(w, http.StatusNotFound, ErrorCodeNotFound, "unknown category: "+name)
		return
	}
	if err != nil {
		s.logger.Error("feeds request failed", "category", name, "error", err)
		JSONError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
		return
	}

	h := w.Header()
	h.Set("X-Cache", cacheStatus(resp.Cache.Hit, resp.Cache.Stale))
	if resp.Cache.Refreshed != "" {
		// Refreshed responses are never replayed from the edge cache.
		h.Set("X-Cache-Refreshed", resp.Cache.Refreshed)
		h.Set("Cache-Control", "no-store")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("name"))

	res, err := s.datasets.Get(r.Context(), name)
	switch {
	case errors.Is(err, dataset.ErrUnknownDataset):
		JSONError(w, http.StatusNotFound, ErrorCodeNotFound, "unknown dataset: "+name)
		return
	case errors.Is(err, dataset.ErrUnavailable):
		s.logger.Warn("dataset unavailable", "dataset", name, "error", err)
		JSONError(w, http.StatusBadGateway, ErrorCodeUpstream, "dataset unavailable: "+name)
		return
	case err != nil:
		s.logger.Error("dataset request failed", "dataset", name, "error", err)
		JSONError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
		return
	}

	w.Header().Set("X-Cache", cacheStatus(res.Cache.Hit, res.Cache.Stale))
	writeJSON(w, http.StatusOK, res)
}

// ---------- Helpers ----------

func cacheStatus(hit, stale bool) string {
	switch {
	case stale:
		return "STALE"
	case hit:
		return "HIT"
	default:
		return "MISS"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
