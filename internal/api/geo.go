package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/gsi"
)

// RegisterGeo registers the GSI backed lookup routes.
func (h *APIHandler) RegisterGeo(api huma.API) {
	huma.Get(api, "/api/v1/search", h.Search, huma.OperationTags("geo"))
	huma.Get(api, "/api/v1/address", h.GetAddress, huma.OperationTags("geo"))
	huma.Get(api, "/api/v1/elevation", h.GetElevation, huma.OperationTags("geo"))
	huma.Get(api, "/api/v1/place", h.GetPlace, huma.OperationTags("geo"))
}

type SearchInput struct {
	Q string `query:"q" maxLength:"100" doc:"Place name or address fragment" example:"中央林間"`
}

type SearchBody struct {
	Query       string           `json:"query" doc:"Query as searched"`
	Suggestions []gsi.Suggestion `json:"suggestions" doc:"Matching places with prefecture and municipality"`
}

func (h *APIHandler) Search(ctx context.Context, input *SearchInput) (*struct{ Body SearchBody }, error) {
	if err := h.needGSI(); err != nil {
		return nil, err
	}
	sugg, err := h.svc.GSI.Suggest(ctx, input.Q)
	if err != nil {
		return nil, toHTTP(err)
	}
	if sugg == nil {
		sugg = []gsi.Suggestion{}
	}
	return &struct{ Body SearchBody }{Body: SearchBody{Query: input.Q, Suggestions: sugg}}, nil
}

type PointInput struct {
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude" example:"35.5117"`
	Lon float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude" example:"139.4754"`
}

func (p PointInput) point() orb.Point { return orb.Point{p.Lon, p.Lat} }

func (h *APIHandler) GetAddress(ctx context.Context, input *PointInput) (*struct{ Body gsi.Address }, error) {
	if err := h.needGSI(); err != nil {
		return nil, err
	}
	addr, err := h.svc.GSI.ReverseGeocode(ctx, input.point())
	if err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body gsi.Address }{Body: addr}, nil
}

type ElevationBody struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Meters float64 `json:"meters" doc:"Height above sea level in metres"`
}

func (h *APIHandler) GetElevation(ctx context.Context, input *PointInput) (*struct{ Body ElevationBody }, error) {
	if err := h.needGSI(); err != nil {
		return nil, err
	}
	m, err := h.svc.GSI.Elevation(ctx, input.point())
	if err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body ElevationBody }{Body: ElevationBody{Lat: input.Lat, Lon: input.Lon, Meters: m}}, nil
}

type PlaceInput struct {
	PointInput
	Title string `query:"title" maxLength:"200" doc:"Marker title"`
}

type PlaceBody struct {
	Place gsi.PlaceInfo `json:"place"`
	Popup string        `json:"popup" doc:"Marker popup HTML"`
}

func (h *APIHandler) GetPlace(ctx context.Context, input *PlaceInput) (*struct{ Body PlaceBody }, error) {
	if err := h.needGSI(); err != nil {
		return nil, err
	}
	info, err := h.svc.GSI.Place(ctx, input.point(), input.Title)
	if err != nil {
		return nil, toHTTP(err)
	}
	body := PlaceBody{Place: info}
	if h.svc.Renderer != nil {
		popup, err := h.svc.Renderer.Render("place-popup", info)
		if err != nil {
			return nil, huma.Error500InternalServerError("rendering popup", err)
		}
		body.Popup = popup
	}
	return &struct{ Body PlaceBody }{Body: body}, nil
}

func (h *APIHandler) needGSI() error {
	if h.svc.GSI == nil {
		return huma.Error503ServiceUnavailable("geo services not configured")
	}
	return nil
}

// RegisterSpots registers the points of interest route.
func (h *APIHandler) RegisterSpots(api huma.API) {
	huma.Get(api, "/api/v1/spots", h.GetSpots, huma.OperationTags("spots"))
}

func (h *APIHandler) GetSpots(ctx context.Context, input *struct{}) (*struct{ Body any }, error) {
	if h.svc.Spots == nil {
		return nil, huma.Error404NotFound("no spots configured")
	}
	return &struct{ Body any }{Body: h.svc.Spots}, nil
}

