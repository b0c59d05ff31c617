package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/kochizu/internal/catalog"
	"github.com/joeblew999/kochizu/internal/gsi"
	"github.com/joeblew999/kochizu/internal/resolver"
)

// toHTTP maps domain errors to Huma status errors.
func toHTTP(err error) error {
	var (
		ume *resolver.UnknownModeError
		oor *resolver.OutOfRangeError
		dup *resolver.DuplicateDatasetError
		ue  *gsi.UpstreamError
	)
	switch {
	case errors.As(err, &ume):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &oor):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, gsi.ErrNoAddress), errors.Is(err, gsi.ErrNoElevation):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, gsi.ErrMuniTableNotLoaded):
		return huma.Error503ServiceUnavailable(err.Error())
	case errors.As(err, &ue):
		return huma.Error502BadGateway(err.Error())
	case catalog.IsLoadError(err), errors.As(err, &dup):
		return huma.Error502BadGateway("catalog reload failed", err)
	}
	return huma.Error500InternalServerError("internal error", err)
}
