package gsi

import (
	"context"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Place is one address search hit.
type Place struct {
	Title       string    `json:"title"`
	Point       orb.Point `json:"point"`
	AddressCode string    `json:"addressCode,omitempty"`
}

// Lat returns the latitude of the place.
func (p Place) Lat() float64 { return p.Point.Lat() }

// Lon returns the longitude of the place.
func (p Place) Lon() float64 { return p.Point.Lon() }

// Search looks up places whose name contains query. An empty query returns
// no places and no error.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	key := "search:" + query
	var places []Place
	if c.cached(ctx, key, &places) {
		return places, nil
	}

	// The service answers with a bare array of GeoJSON point features.
	var feats []*geojson.Feature
	if err := c.getJSON(ctx, "search", c.ep.Search, url.Values{"q": {query}}, &feats); err != nil {
		return nil, err
	}
	places = make([]Place, 0, len(feats))
	for _, f := range feats {
		if f == nil || f.Geometry == nil {
			continue
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		places = append(places, Place{
			Title:       f.Properties.MustString("title", ""),
			Point:       pt,
			AddressCode: f.Properties.MustString("addressCode", ""),
		})
	}
	c.store(ctx, key, places)
	return places, nil
}

// FeatureCollection renders places as GeoJSON points with a title property.
func FeatureCollection(places []Place) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range places {
		f := geojson.NewFeature(p.Point)
		f.Properties["title"] = p.Title
		if p.AddressCode != "" {
			f.Properties["addressCode"] = p.AddressCode
		}
		fc.Append(f)
	}
	return fc
}
