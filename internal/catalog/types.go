// Package catalog models tile catalogs: datasets of era-tagged tile folders
// loaded from static JSON documents.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Catalog is one parsed catalog document plus the source settings that
// describe how its folders become tile URLs.
type Catalog struct {
	Source   Source
	DataSets []DataSet
}

// DataSet is a named, ordered list of era entries.
type DataSet struct {
	Name    string     `json:"DataSet"`
	EraInfo []EraEntry `json:"EraInfo"`
}

// EraEntry is one time-bounded tile set within a dataset.
type EraEntry struct {
	Era       EraRange          `json:"Era"`
	EraFolder string            `json:"EraFolder"`
	Label     string            `json:"Label,omitempty"`
	Latest    bool              `json:"Latest,omitempty"`
	Bounds    []float64         `json:"Bounds,omitempty"`
	Area      *geojson.Geometry `json:"Area,omitempty"`
}

// EraRange is an inclusive year interval. Open ranges run to the present.
type EraRange struct {
	Start int
	End   int
	Open  bool
}

// Contains reports whether year falls inside the range.
func (r EraRange) Contains(year int) bool {
	if year < r.Start {
		return false
	}
	return r.Open || year <= r.End
}

// String renders the range the way the slider labels eras.
func (r EraRange) String() string {
	if r.Open {
		return fmt.Sprintf("%d-", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// UnmarshalJSON accepts [start, end] where end may be a number, null,
// "latest" or "present".
func (r *EraRange) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("era must be a [start, end] array: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("era must have 2 elements, got %d", len(raw))
	}
	var out EraRange
	if err := json.Unmarshal(raw[0], &out.Start); err != nil {
		return fmt.Errorf("era start: %w", err)
	}

	end := bytes.TrimSpace(raw[1])
	switch {
	case bytes.Equal(end, []byte("null")):
		out.Open = true
	case len(end) > 0 && end[0] == '"':
		var s string
		if err := json.Unmarshal(end, &s); err != nil {
			return fmt.Errorf("era end: %w", err)
		}
		switch strings.ToLower(s) {
		case "latest", "present", "":
			out.Open = true
		default:
			return fmt.Errorf("era end: unknown sentinel %q", s)
		}
	default:
		if err := json.Unmarshal(end, &out.End); err != nil {
			return fmt.Errorf("era end: %w", err)
		}
		if out.End < out.Start {
			return fmt.Errorf("era end %d before start %d", out.End, out.Start)
		}
	}

	*r = out
	return nil
}

// MarshalJSON writes the range back in catalog form.
func (r EraRange) MarshalJSON() ([]byte, error) {
	if r.Open {
		return json.Marshal([]any{r.Start, "latest"})
	}
	return json.Marshal([2]int{r.Start, r.End})
}

// Bounded reports whether the entry declares any spatial coverage.
func (e EraEntry) Bounded() bool {
	return len(e.Bounds) == 4 || (e.Area != nil && e.Area.Coordinates != nil)
}

// Covers reports whether the entry's spatial coverage contains p. An
// unbounded entry covers everything.
func (e EraEntry) Covers(p orb.Point) bool {
	if !e.Bounded() {
		return true
	}
	if len(e.Bounds) == 4 {
		b := orb.Bound{
			Min: orb.Point{e.Bounds[0], e.Bounds[1]},
			Max: orb.Point{e.Bounds[2], e.Bounds[3]},
		}
		if !b.Contains(p) {
			return false
		}
	}
	if e.Area == nil || e.Area.Coordinates == nil {
		return true
	}
	switch g := e.Area.Coordinates.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	default:
		return g.Bound().Contains(p)
	}
}

func (e EraEntry) validate() error {
	if e.EraFolder == "" {
		return fmt.Errorf("era %s: EraFolder is empty", e.Era)
	}
	if len(e.Bounds) != 0 && len(e.Bounds) != 4 {
		return fmt.Errorf("era %s: Bounds needs 4 values, got %d", e.Era, len(e.Bounds))
	}
	if len(e.Bounds) == 4 && (e.Bounds[0] > e.Bounds[2] || e.Bounds[1] > e.Bounds[3]) {
		return fmt.Errorf("era %s: Bounds min exceeds max", e.Era)
	}
	return nil
}

// YearSpan returns the smallest start year and the largest closed end year
// across the dataset. open is true when any entry runs to the present.
func (d DataSet) YearSpan() (min, max int, open bool) {
	for i, e := range d.EraInfo {
		if i == 0 || e.Era.Start < min {
			min = e.Era.Start
		}
		if e.Era.Open {
			open = true
			if e.Era.Start > max {
				max = e.Era.Start
			}
			continue
		}
		if e.Era.End > max {
			max = e.Era.End
		}
	}
	return min, max, open
}

// LatestEntry returns the entry used when no era matches: the one flagged
// Latest, otherwise the last declared entry.
func (d DataSet) LatestEntry() (EraEntry, bool) {
	if len(d.EraInfo) == 0 {
		return EraEntry{}, false
	}
	for _, e := range d.EraInfo {
		if e.Latest {
			return e, true
		}
	}
	return d.EraInfo[len(d.EraInfo)-1], true
}
