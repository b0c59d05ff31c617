package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/kochizu/internal/catalog"
	"github.com/joeblew999/kochizu/internal/humastar"
	"github.com/joeblew999/kochizu/internal/viewer"
)

// ViewerHandler answers Datastar requests from the viewer page.
type ViewerHandler struct {
	humastar.Handler
	svc     *Services
	updater viewer.Updater
}

func NewViewerHandler(svc *Services) *ViewerHandler {
	return &ViewerHandler{
		Handler: humastar.Handler{Renderer: svc.Renderer},
		svc:     svc,
		updater: viewer.Updater{Modes: svc.Config.Modes, Suffix: svc.Config.Years.Suffix},
	}
}

// RegisterViewer registers the viewer SSE routes.
func (h *ViewerHandler) RegisterViewer(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "viewer-update",
		Method:      "POST",
		Path:        "/api/v1/viewer/update",
		Summary:     "Apply a viewer change",
		Description: "Reads the viewer signals (year, mode, lat, lon, zoom, change) and streams the new state as Datastar SSE.",
		Tags:        []string{"viewer"},
	}, h.Update)
	huma.Register(api, huma.Operation{
		OperationID: "viewer-search",
		Method:      "POST",
		Path:        "/api/v1/viewer/search",
		Summary:     "Search places for the viewer",
		Description: "Reads the q signal and streams the suggestion list as Datastar SSE.",
		Tags:        []string{"viewer"},
	}, h.Search)
	if h.svc.Events != nil {
		huma.Register(api, huma.Operation{
			OperationID: "viewer-events",
			Method:      "GET",
			Path:        "/api/v1/viewer/events",
			Summary:     "Follow catalog changes",
			Description: "Long-lived Datastar SSE stream. After a catalog reload it patches the availableModes and notice signals.",
			Tags:        []string{"viewer"},
		}, h.Events)
	}
}

// stateFromSignals reads the viewer state, falling back to the configured
// initial view for missing signals.
func (h *ViewerHandler) stateFromSignals(sig humastar.Signals) viewer.State {
	cfg := h.svc.Config
	s := viewer.State{
		Year: cfg.Years.Start,
		Mode: cfg.InitialMode(),
		Lat:  cfg.Map.Lat,
		Lon:  cfg.Map.Lon,
		Zoom: cfg.Map.Zoom,
	}
	if sig.Has("year") {
		s.Year = sig.Int("year")
	}
	if m := sig.String("mode"); m != "" {
		s.Mode = m
	}
	if sig.Has("lat") && sig.Has("lon") {
		s.Lat, s.Lon = sig.Float("lat"), sig.Float("lon")
	}
	if sig.Has("zoom") {
		s.Zoom = sig.Int("zoom")
	}
	return s
}

func (h *ViewerHandler) Update(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if h.svc.Resolver == nil || h.svc.Resolver.Get() == nil {
		return nil, huma.Error503ServiceUnavailable("catalogs not loaded")
	}
	r := h.svc.Resolver.Get()

	state := h.stateFromSignals(sig)
	change := viewer.Change{
		Kind: viewer.Kind(sig.String("change")),
		Year: state.Year,
		Mode: state.Mode,
		Lat:  state.Lat,
		Lon:  state.Lon,
		Zoom: state.Zoom,
	}
	next, view, err := h.updater.Update(r, state, change)
	countResolve(next.Mode, view.Tile, err)

	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			slog.Debug("viewer_update_rejected", "mode", next.Mode, "err", err)
			sse.Error(err.Error())
			return
		}
		sse.Signals(map[string]any{
			"year":        next.Year,
			"mode":        next.Mode,
			"nextMode":    view.NextMode,
			"tileUrl":     view.Tile.URL,
			"tms":         view.Tile.Scheme == catalog.SchemeTMS,
			"maxZoom":     view.Tile.MaxZoom,
			"attribution": view.Tile.Attribution,
			"yearLabel":   view.YearLabel,
			"eraText":     view.EraText,
			"error":       "",
		})
		sse.Replace(h.Render("tile-status", view), "#tile-status")
	}), nil
}

func (h *ViewerHandler) Search(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if h.svc.GSI == nil {
		return nil, huma.Error503ServiceUnavailable("geo services not configured")
	}
	q := sig.String("q")
	sugg, err := h.svc.GSI.Suggest(ctx, q)

	return h.Stream(func(sse humastar.SSE) {
		if err != nil {
			sse.Error(err.Error())
			return
		}
		items := make([]any, len(sugg))
		for i, s := range sugg {
			items[i] = s
		}
		msg := ""
		if q != "" {
			msg = "該当する地名がありません"
		}
		sse.Patch(h.RenderList("suggestion", items, msg), "#suggestions")
	}), nil
}

func (h *ViewerHandler) Events(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	bus := h.svc.Events
	ch := bus.Subscribe()

	return h.Stream(func(sse humastar.SSE) {
		defer bus.Unsubscribe(ch)
		done := ctx.Done()
		for {
			select {
			case <-done:
				return
			case e := <-ch:
				sse.Signals(map[string]any{
					"availableModes": e.Modes,
					"notice":         "地図データを更新しました",
				})
			}
		}
	}), nil
}
