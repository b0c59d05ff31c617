package gsi

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/cache"
)

type elevationResponse struct {
	Elevation json.RawMessage `json:"elevation"`
	Source    string          `json:"hsrc"`
}

// Elevation returns the height in metres at p. Points without DEM coverage,
// reported as null or "-----", give ErrNoElevation.
func (c *Client) Elevation(ctx context.Context, p orb.Point) (float64, error) {
	key := cache.CoordKey("elev", p.Lat(), p.Lon())
	var cached struct {
		Meters float64 `json:"m"`
		OK     bool    `json:"ok"`
	}
	if c.cached(ctx, key, &cached) {
		if !cached.OK {
			return 0, ErrNoElevation
		}
		return cached.Meters, nil
	}

	q := url.Values{
		"lon":     {strconv.FormatFloat(p.Lon(), 'f', -1, 64)},
		"lat":     {strconv.FormatFloat(p.Lat(), 'f', -1, 64)},
		"outtype": {"JSON"},
	}
	var resp elevationResponse
	if err := c.getJSON(ctx, "elevation", c.ep.Elevation, q, &resp); err != nil {
		return 0, err
	}
	m, ok := parseElevation(resp.Elevation)
	cached.Meters, cached.OK = m, ok
	c.store(ctx, key, cached)
	if !ok {
		return 0, ErrNoElevation
	}
	return m, nil
}

func parseElevation(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	// Some responses quote the number.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
