// Package api exposes the dataset, visualization, insight and migration
// services over HTTP.
package api

import (
	"net/http"

	"github.com/KaramelBytes/dataglimpse/internal/auth"
	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/ingest"
	"github.com/KaramelBytes/dataglimpse/internal/insight"
	"github.com/KaramelBytes/dataglimpse/internal/migration"
	"github.com/KaramelBytes/dataglimpse/internal/visualization"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Handler serves the HTTP API.
type Handler struct {
	Datasets       *dataset.Manager
	Visualizations *visualization.Manager
	Ingestor       *ingest.Ingestor
	Migrator       *migration.Migrator
	Insights       *insight.Service
	Auth           *auth.Resolver
	Log            *zap.Logger

	// MaxUploadBytes bounds the multipart request body; 0 disables the bound.
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Router builds the chi router with middleware and every route.
func (h *Handler) Router() http.Handler {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}
	origins := h.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(h.identity)

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api/data", func(r chi.Router) {
		r.With(requireIdentity).Post("/upload", h.Upload)
		r.With(requireIdentity).Get("/datasets", h.ListDatasets)
		r.Get("/preview/{id}", h.Preview)
		r.With(requireIdentity).Post("/configure", h.Configure)
		r.With(requireIdentity).Get("/final-preview/{id}", h.FinalPreview)
	})

	r.Route("/api/visualizations", func(r chi.Router) {
		r.Post("/create", h.CreateVisualization)
		r.Get("/fetch/{vizId}", h.FetchVisualization)
		r.With(requireIdentity).Patch("/update/{vizId}", h.UpdateVisualization)
		r.With(requireIdentity).Patch("/status/{vizId}", h.SetVisualizationStatus)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/generate", h.GenerateInsight)
		r.Get("/history/{vizId}", h.InsightHistory)
	})

	r.With(requireIdentity).Post("/api/auth/migrate", h.Migrate)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}
