// Package spots loads the points of interest shown as markers on the map.
package spots

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"
)

// Spot is a point of interest.
type Spot struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Lat         float64 `yaml:"lat" json:"lat"`
	Lon         float64 `yaml:"lon" json:"lon"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string  `yaml:"category,omitempty" json:"category,omitempty"`
	Link        string  `yaml:"link,omitempty" json:"link,omitempty"`
}

// Point returns the spot location.
func (s Spot) Point() orb.Point { return orb.Point{s.Lon, s.Lat} }

// LoadFile reads spots from a YAML file. A missing file yields no spots.
func LoadFile(path string) ([]Spot, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening spots: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML list of spots and validates ids and coordinates.
func Parse(r io.Reader) ([]Spot, error) {
	var out []Spot
	if err := yaml.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing spots: %w", err)
	}
	seen := make(map[string]bool, len(out))
	for i, s := range out {
		if s.ID == "" {
			return nil, fmt.Errorf("parsing spots: entry %d has no id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("parsing spots: duplicate id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Lat < -90 || s.Lat > 90 || s.Lon < -180 || s.Lon > 180 {
			return nil, fmt.Errorf("parsing spots: %q has invalid coordinates", s.ID)
		}
	}
	return out, nil
}

// FeatureCollection renders spots as GeoJSON points. When popup is non-nil
// each feature gets a "popup" property with its HTML.
func FeatureCollection(spots []Spot, popup func(Spot) (string, error)) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, s := range spots {
		f := geojson.NewFeature(s.Point())
		f.ID = s.ID
		f.Properties["name"] = s.Name
		if s.Category != "" {
			f.Properties["category"] = s.Category
		}
		if s.Description != "" {
			f.Properties["description"] = s.Description
		}
		if s.Link != "" {
			f.Properties["link"] = s.Link
		}
		if popup != nil {
			html, err := popup(s)
			if err != nil {
				return nil, fmt.Errorf("rendering popup for %q: %w", s.ID, err)
			}
			f.Properties["popup"] = html
		}
		fc.Append(f)
	}
	return fc, nil
}

// Mirror replaces the spots table with the given spots.
func Mirror(ctx context.Context, conn *sql.DB, spots []Spot) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE OR REPLACE TABLE spots (
		id VARCHAR PRIMARY KEY,
		name VARCHAR,
		category VARCHAR,
		description VARCHAR,
		link VARCHAR,
		lat DOUBLE,
		lon DOUBLE
	)`); err != nil {
		return fmt.Errorf("creating spots table: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spots VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, s := range spots {
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Category, s.Description, s.Link, s.Lat, s.Lon); err != nil {
			return fmt.Errorf("inserting spot %q: %w", s.ID, err)
		}
	}
	return tx.Commit()
}
