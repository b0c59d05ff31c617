package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/metrics"
	"github.com/joeblew999/kochizu/internal/resolver"
	"github.com/joeblew999/kochizu/internal/viewer"
)

// RegisterTiles registers tile resolution routes.
func (h *APIHandler) RegisterTiles(api huma.API) {
	huma.Get(api, "/api/v1/modes", h.GetModes, huma.OperationTags("tiles"))
	huma.Get(api, "/api/v1/resolve", h.Resolve, huma.OperationTags("tiles"))
	huma.Get(api, "/api/v1/slider", h.GetSlider, huma.OperationTags("tiles"))
	huma.Register(api, huma.Operation{
		OperationID: "reload-catalogs",
		Method:      "POST",
		Path:        "/api/v1/catalogs/reload",
		Summary:     "Reload tile catalogs",
		Description: "Fetches every configured catalog again and swaps the index in. On failure the current index stays active.",
		Tags:        []string{"tiles"},
	}, h.ReloadCatalogs)
}

type ModesBody struct {
	Default string              `json:"default" doc:"Mode the viewer starts in"`
	Toggle  []string            `json:"toggle" doc:"Mode toggle order"`
	Modes   []resolver.ModeInfo `json:"modes" doc:"Loaded datasets"`
}

func (h *APIHandler) GetModes(ctx context.Context, input *struct{}) (*struct{ Body ModesBody }, error) {
	r, err := h.resolver()
	if err != nil {
		return nil, err
	}
	return &struct{ Body ModesBody }{Body: ModesBody{
		Default: h.svc.Config.InitialMode(),
		Toggle:  h.svc.Config.Modes,
		Modes:   r.Modes(),
	}}, nil
}

type ResolveInput struct {
	Year   int    `query:"year" required:"true" doc:"Year selected on the slider" example:"1950"`
	Mode   string `query:"mode" required:"true" doc:"Dataset name" example:"topo"`
	Center string `query:"center" doc:"Map center as lat,lon" example:"35.5117,139.4754"`
	Strict bool   `query:"strict" doc:"Reject years outside the slider range instead of clamping"`
	Zoom   int    `query:"zoom" minimum:"0" maximum:"22" doc:"With center, also return the URL of the tile under the center at this zoom"`
}

func (h *APIHandler) Resolve(ctx context.Context, input *ResolveInput) (*struct{ Body resolver.ResolvedTile }, error) {
	r, err := h.resolver()
	if err != nil {
		return nil, err
	}
	center, err := ParseCenter(input.Center)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if input.Strict {
		if err := r.CheckYear(input.Year); err != nil {
			return nil, toHTTP(err)
		}
	}
	tile, err := r.Resolve(input.Year, input.Mode, center)
	countResolve(input.Mode, tile, err)
	if err != nil {
		return nil, toHTTP(err)
	}
	if center != nil && input.Zoom > 0 {
		tile.CenterTile = tile.At(*center, input.Zoom)
	}
	return &struct{ Body resolver.ResolvedTile }{Body: tile}, nil
}

func (h *APIHandler) GetSlider(ctx context.Context, input *struct{}) (*struct{ Body viewer.Slider }, error) {
	return &struct{ Body viewer.Slider }{Body: viewer.NewSlider(h.svc.Config.Years)}, nil
}

type ReloadBody struct {
	Modes []resolver.ModeInfo `json:"modes" doc:"Datasets after the reload"`
}

func (h *APIHandler) ReloadCatalogs(ctx context.Context, input *struct{}) (*struct{ Body ReloadBody }, error) {
	if h.svc.Reload == nil || h.svc.Resolver == nil {
		return nil, huma.Error501NotImplemented("reload not configured")
	}
	r, err := h.svc.Reload(ctx)
	if err != nil {
		return nil, toHTTP(err)
	}
	h.svc.Resolver.Store(r)
	if h.svc.Events != nil {
		h.svc.Events.Publish(viewer.Event{Kind: "catalogs_reloaded", Modes: r.ModeNames()})
	}
	return &struct{ Body ReloadBody }{Body: ReloadBody{Modes: r.Modes()}}, nil
}

func (h *APIHandler) resolver() (*resolver.Resolver, error) {
	if h.svc.Resolver == nil || h.svc.Resolver.Get() == nil {
		return nil, huma.Error503ServiceUnavailable("catalogs not loaded")
	}
	return h.svc.Resolver.Get(), nil
}

func countResolve(mode string, tile resolver.ResolvedTile, err error) {
	var ume *resolver.UnknownModeError
	switch {
	case errors.As(err, &ume):
		metrics.ResolvesTotal.WithLabelValues("unknown", "unknown_mode").Inc()
	case err != nil:
	case tile.Era.Latest:
		metrics.ResolvesTotal.WithLabelValues(mode, "latest").Inc()
	default:
		metrics.ResolvesTotal.WithLabelValues(mode, "era").Inc()
	}
}

// ParseCenter reads "lat,lon". An empty string means no center.
func ParseCenter(s string) (*orb.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	lat, lon, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("center must be lat,lon")
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("center latitude: %w", err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return nil, fmt.Errorf("center longitude: %w", err)
	}
	if math.IsNaN(la) || math.IsNaN(lo) || la < -90 || la > 90 || lo < -180 || lo > 180 {
		return nil, fmt.Errorf("center %s out of range", s)
	}
	return &orb.Point{lo, la}, nil
}
