// Package api exposes the HTTP surface: entry CRUD, nearby and free-text
// lookups, content generation, reverse geocoding and the portrait pipeline.
package api

import (
	"context"
	"net/http"

	"iamkolkata/internal/common/config"
	"iamkolkata/internal/common/logger"
	"iamkolkata/internal/common/observability"
	"iamkolkata/internal/geocode"
	"iamkolkata/internal/models"
	"iamkolkata/internal/portrait"
	"iamkolkata/internal/session"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// EntryStore is the persistence surface the handlers need.
type EntryStore interface {
	Insert(ctx context.Context, entry models.NewEntry) (*models.ParaEntry, error)
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.NearbyEntry, error)
	NearbyTitles(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error)
}

// Searcher indexes entries and answers free-text queries.
type Searcher interface {
	Add(ctx context.Context, entry *models.ParaEntry)
	Search(ctx context.Context, query string, limit int) ([]models.ParaEntry, error)
}

// ContentGenerator produces descriptions and tag suggestions.
type ContentGenerator interface {
	GenerateDescription(ctx context.Context, paraName string, tags []string, experiences string) (string, error)
	SuggestTags(ctx context.Context, district, state string) ([]string, error)
}

// Geocoder resolves coordinates and pincodes.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (models.Location, error)
	LookupPincode(ctx context.Context, pincode string) (*geocode.District, error)
}

// PortraitService runs the portrait pipeline.
type PortraitService interface {
	Generate(ctx context.Context, req portrait.Request) (*portrait.Result, error)
	Job(ctx context.Context, id string) (*models.PortraitJob, error)
}

// Server holds the handler dependencies.
type Server struct {
	entries   EntryStore
	search    Searcher
	content   ContentGenerator
	geo       Geocoder
	portraits PortraitService
	sessions  *session.Store
	tagCache  *redis.Client
	obs       *observability.Observability
	cfg       config.PipelineConfig
	log       logger.Logger
}

// NewServer wires the handlers. search, tagCache and portraits may be nil;
// the corresponding endpoints then report the feature as unavailable.
func NewServer(
	entries EntryStore,
	searcher Searcher,
	content ContentGenerator,
	geo Geocoder,
	portraits PortraitService,
	tagCache *redis.Client,
	obs *observability.Observability,
	cfg config.PipelineConfig,
	log logger.Logger,
) *Server {
	return &Server{
		entries:   entries,
		search:    searcher,
		content:   content,
		geo:       geo,
		portraits: portraits,
		sessions:  session.NewStore(),
		tagCache:  tagCache,
		obs:       obs,
		cfg:       cfg,
		log:       log.With(map[string]interface{}{"component": "api"}),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/nearby", s.handleNearby)
	mux.HandleFunc("GET /api/entries/search", s.handleSearch)

	mux.HandleFunc("POST /api/description", s.handleDescription)
	mux.HandleFunc("POST /api/tags", s.handleTags)
	mux.HandleFunc("POST /api/geocode/reverse", s.handleReverseGeocode)

	mux.HandleFunc("POST /api/portraits", s.handleCreatePortrait)
	mux.HandleFunc("GET /api/portraits/{id}", s.handleGetPortrait)

	mux.HandleFunc("GET /api/session/{id}", s.handleSessionGet)
	mux.HandleFunc("POST /api/session/{id}/location", s.handleSessionLocation)
	mux.HandleFunc("POST /api/session/{id}/form/{field}", s.handleSessionUpdate)
	mux.HandleFunc("DELETE /api/session/{id}/form/{field}", s.handleSessionUpdate)
	mux.HandleFunc("POST /api/session/{id}/generate", s.handleSessionGenerate)
	mux.HandleFunc("POST /api/session/{id}/clear", s.handleSessionClear)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
