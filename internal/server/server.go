package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/kochizu/internal/api"
	"github.com/joeblew999/kochizu/internal/cache"
	"github.com/joeblew999/kochizu/internal/config"
	"github.com/joeblew999/kochizu/internal/db"
	"github.com/joeblew999/kochizu/internal/gsi"
	"github.com/joeblew999/kochizu/internal/logger"
	"github.com/joeblew999/kochizu/internal/metrics"
	"github.com/joeblew999/kochizu/internal/resolver"
	"github.com/joeblew999/kochizu/internal/spots"
	"github.com/joeblew999/kochizu/internal/templates"
	"github.com/joeblew999/kochizu/internal/viewer"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	ConfigFile string // kochizu.yaml
	DataDir    string // DuckDB location; empty disables the database
	WebDir     string // Path to web/ directory for the viewer page and static files
	RedisAddr  string // overrides cache.redis_addr
	SkipLoad   bool   // build routes only, for spec export
}

// Server is the viewer HTTP server.
type Server struct {
	config   Config
	app      config.Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	cache    cache.Cache
	services *api.Services
	log      *slog.Logger
}

// New loads configuration and catalogs and assembles the routes. Catalog
// load failures are fatal unless allow_partial_catalogs is set.
func New(ctx context.Context, cfg Config) (*Server, error) {
	log := logger.L()
	app, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr != "" {
		app.Cache.RedisAddr = cfg.RedisAddr
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("kochizu API", api.Version)
	humaConfig.Info.Description = "Historical map viewer API: resolves era-tagged tile layers by year, mode and map center, and proxies GSI place lookups."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.Links.Transformer())

	s := &Server{
		config:  cfg,
		app:     app,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		log:     log,
	}

	renderer, err := s.renderer()
	if err != nil {
		return nil, err
	}
	s.services = &api.Services{
		Config:   app,
		Resolver: resolver.NewCurrent(nil),
		Reload: func(ctx context.Context) (*resolver.Resolver, error) {
			return LoadResolver(ctx, app, false, log)
		},
		Renderer: renderer,
		Events:   viewer.NewBus(),
	}

	if !cfg.SkipLoad {
		if err := s.load(ctx, renderer); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.routes()
	s.handler = logger.AccessMiddleware(log)(cors(s.mux))
	return s, nil
}

func (s *Server) renderer() (*templates.Renderer, error) {
	if s.config.WebDir != "" {
		dir := filepath.Join(s.config.WebDir, "templates", "fragments")
		if r, err := templates.NewDir(dir); err == nil {
			s.log.Info("fragments_loaded", "dir", dir)
			return r, nil
		}
	}
	return templates.New()
}

func (s *Server) load(ctx context.Context, renderer *templates.Renderer) error {
	app := s.app

	r, err := LoadResolver(ctx, app, app.AllowPartialCatalogs, s.log)
	if err != nil {
		return err
	}
	s.services.Resolver.Store(r)
	s.log.Info("catalogs_ready", "modes", r.ModeNames())

	c, err := cache.New(ctx, cache.Config{
		RedisAddr: app.Cache.RedisAddr,
		RedisPass: app.Cache.RedisPass,
		RedisDB:   app.Cache.RedisDB,
		Size:      app.Cache.Size,
		TTL:       app.Cache.TTL,
		Prefix:    "kochizu:",
	})
	if err != nil {
		s.log.Warn("cache_fallback", "err", err)
	}
	s.cache = c
	s.services.Cache = c

	httpClient := &http.Client{Timeout: app.GSI.Timeout}
	muni := gsi.NewMuniTable()
	s.services.GSI = gsi.New(gsi.Options{
		Endpoints: gsi.Endpoints{
			Search:    app.GSI.SearchURL,
			Reverse:   app.GSI.ReverseURL,
			Elevation: app.GSI.ElevationURL,
		},
		HTTPClient:  httpClient,
		Cache:       c,
		Muni:        muni,
		Concurrency: app.GSI.Concurrency,
		Logger:      s.log,
	})
	if app.GSI.MuniURL != "" {
		go s.fetchMuni(muni, httpClient, app.GSI.MuniURL)
	}

	if s.config.DataDir != "" {
		conn, err := db.Open(ctx, db.Config{DataDir: s.config.DataDir, DBName: "kochizu"})
		if err != nil {
			s.log.Warn("duckdb_unavailable", "err", err)
		} else {
			s.db = conn
			s.services.DB = conn
		}
	}

	list, err := spots.LoadFile(app.Spots)
	if err != nil {
		return err
	}
	if len(list) > 0 {
		fc, err := spots.FeatureCollection(list, func(sp spots.Spot) (string, error) {
			return renderer.Render("spot-popup", sp)
		})
		if err != nil {
			return err
		}
		s.services.Spots = fc
		if s.db != nil {
			if err := spots.Mirror(ctx, s.db, list); err != nil {
				s.log.Warn("spots_mirror_error", "err", err)
			}
		}
		s.log.Info("spots_loaded", "count", len(list))
	}
	return nil
}

// fetchMuni loads the municipality table in the background. Until it
// completes, reverse geocoding reports the table as not loaded.
func (s *Server) fetchMuni(t *gsi.MuniTable, hc *http.Client, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := t.Fetch(ctx, hc, url); err != nil {
		s.log.Error("muni_table_error", "url", url, "err", err)
		return
	}
	s.log.Info("muni_table_loaded", "entries", t.Len())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI spec.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Resolver returns the active resolver, nil when catalogs were not loaded.
func (s *Server) Resolver() *resolver.Resolver {
	return s.services.Resolver.Get()
}

// Close closes server resources.
func (s *Server) Close() error {
	if c, ok := s.cache.(io.Closer); ok {
		c.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON and SSE endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.Links.Document(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Link", `</viewer>; rel="viewer"`)
	w.Header().Add("Link", `</docs>; rel="service-doc"`)
	w.Header().Add("Link", `</openapi.json>; rel="service-desc"`)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "kochizu",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", "viewer.html"))
}

// cors lets map pages on other origins call the API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Datastar-Request")
		w.Header().Set("Access-Control-Expose-Headers", "Link")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
