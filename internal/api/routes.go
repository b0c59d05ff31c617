// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/kochizu/internal/cache"
	"github.com/joeblew999/kochizu/internal/config"
	"github.com/joeblew999/kochizu/internal/gsi"
	"github.com/joeblew999/kochizu/internal/resolver"
	"github.com/joeblew999/kochizu/internal/templates"
	"github.com/joeblew999/kochizu/internal/viewer"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.3.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Config   config.Config
	Resolver *resolver.Current
	Reload   func(ctx context.Context) (*resolver.Resolver, error) // rebuilds from the configured catalogs
	GSI      *gsi.Client
	Cache    cache.Cache
	Spots    *geojson.FeatureCollection
	DB       *sql.DB
	Renderer *templates.Renderer
	Events   *viewer.Bus
}

// RegisterRoutes registers every handler with the API.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	huma.AutoRegister(api, NewDBHandler(svc.DB))
	if svc.Renderer != nil {
		huma.AutoRegister(api, NewViewerHandler(svc))
	}
}

// HealthBody is the /health response.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.3.0"`
}

// InfoBody is the /api/v1/info response.
type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	Modes      []string `json:"modes" doc:"Loaded dataset names"`
	MuniLoaded bool     `json:"muni_loaded" doc:"Whether municipality names are available"`
	Cache      string   `json:"cache" doc:"Upstream cache backend"`
	DB         bool     `json:"db" doc:"Whether the database is available"`
	Features   []string `json:"features" doc:"Available features"`
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "kochizu",
		Version:  Version,
		Modes:    []string{},
		DB:       h.svc.DB != nil,
		Features: []string{"resolve", "slider"},
	}
	if r, err := h.resolver(); err == nil {
		body.Modes = r.ModeNames()
	}
	if h.svc.GSI != nil {
		body.MuniLoaded = h.svc.GSI.Muni().Loaded()
		body.Features = append(body.Features, "search", "address", "elevation")
	}
	if h.svc.Cache != nil {
		body.Cache = h.svc.Cache.Backend()
	}
	if h.svc.Spots != nil {
		body.Features = append(body.Features, "spots")
	}
	if h.svc.DB != nil {
		body.Features = append(body.Features, "duckdb")
	}
	if h.svc.Renderer != nil {
		body.Features = append(body.Features, "viewer")
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
