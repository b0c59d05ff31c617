package gsi

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// maxSuggestions caps how many search hits are reverse geocoded.
const maxSuggestions = 20

// Suggestion is a search hit with the address line shown under it.
type Suggestion struct {
	Place  Place  `json:"place"`
	Detail string `json:"detail"`
}

// Suggest searches for query and names the prefecture and municipality of
// each hit. Address lookups run concurrently; a hit whose address cannot be
// resolved keeps an empty detail.
func (c *Client) Suggest(ctx context.Context, query string) ([]Suggestion, error) {
	places, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(places) > maxSuggestions {
		places = places[:maxSuggestions]
	}

	out := make([]Suggestion, len(places))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range places {
		out[i].Place = p
		g.Go(func() error {
			addr, err := c.ReverseGeocode(gctx, p.Point)
			if err != nil {
				c.log.Debug("suggest_address_skipped", "title", p.Title, "err", err)
				return nil
			}
			out[i].Detail = addr.Detail()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceInfo is everything the marker popup shows for a point.
type PlaceInfo struct {
	Title     string    `json:"title"`
	Point     orb.Point `json:"point"`
	Address   Address   `json:"address"`
	Elevation *float64  `json:"elevation"`
}

// Place fetches the address and elevation of p concurrently. Missing data
// leaves the matching field empty; upstream failures of both lookups are
// returned.
func (c *Client) Place(ctx context.Context, p orb.Point, title string) (PlaceInfo, error) {
	info := PlaceInfo{Title: title, Point: p}

	var (
		wg              sync.WaitGroup
		addrErr, elvErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		info.Address, addrErr = c.ReverseGeocode(ctx, p)
	}()
	go func() {
		defer wg.Done()
		m, err := c.Elevation(ctx, p)
		if err == nil {
			info.Elevation = &m
		}
		elvErr = err
	}()
	wg.Wait()

	var ue1, ue2 *UpstreamError
	if errors.As(addrErr, &ue1) && errors.As(elvErr, &ue2) {
		return info, errors.Join(addrErr, elvErr)
	}
	return info, nil
}
