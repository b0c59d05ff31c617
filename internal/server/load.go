package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joeblew999/kochizu/internal/catalog"
	"github.com/joeblew999/kochizu/internal/config"
	"github.com/joeblew999/kochizu/internal/resolver"
)

// LoadResolver fetches the configured catalogs and indexes them. With
// allowPartial, failed sources are logged and skipped as long as one
// catalog loaded; otherwise any failure is returned.
func LoadResolver(ctx context.Context, app config.Config, allowPartial bool, log *slog.Logger) (*resolver.Resolver, error) {
	loader := catalog.NewLoader(&http.Client{Timeout: app.GSI.Timeout}, log)

	var (
		cats []catalog.Catalog
		err  error
	)
	if allowPartial {
		cats, err = loader.LoadAvailable(ctx, app.Catalogs)
		if err != nil {
			if len(cats) == 0 {
				return nil, err
			}
			log.Warn("catalogs_partial", "loaded", len(cats), "err", err)
		}
	} else {
		cats, err = loader.LoadAll(ctx, app.Catalogs)
		if err != nil {
			return nil, err
		}
	}
	return resolver.New(cats, resolver.WithYearRange(app.Years.Min, app.Years.Max))
}
