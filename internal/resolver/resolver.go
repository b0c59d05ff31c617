// Package resolver answers "which tile layer should be shown for this year,
// mode and map center" against loaded tile catalogs.
package resolver

import (
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/catalog"
)

// Era is the matched era range, or the latest sentinel when the query fell
// back to a dataset's latest entry.
type Era struct {
	Start  int
	End    int
	Open   bool
	Latest bool
}

// MarshalJSON writes [start, end], [start, null] for open ranges, or "latest".
func (e Era) MarshalJSON() ([]byte, error) {
	switch {
	case e.Latest:
		return json.Marshal("latest")
	case e.Open:
		return json.Marshal([]any{e.Start, nil})
	}
	return json.Marshal([2]int{e.Start, e.End})
}

// ResolvedTile is the answer to a Resolve query.
type ResolvedTile struct {
	URL         string         `json:"url"`
	Label       string         `json:"label"`
	Era         Era            `json:"era"`
	Mode        string         `json:"mode"`
	Folder      string         `json:"folder"`
	Scheme      catalog.Scheme `json:"scheme"`
	Attribution string         `json:"attribution,omitempty"`
	MaxZoom     int            `json:"maxZoom,omitempty"`
	Year        int            `json:"year"`
	Clamped     bool           `json:"clamped"`
	CenterTile  string         `json:"centerTile,omitempty"`
}

// At returns the concrete URL of the tile covering p at zoom z.
func (t ResolvedTile) At(p orb.Point, z int) string {
	return catalog.TileURL(t.URL, p, z)
}

// ModeInfo summarises one resolvable dataset.
type ModeInfo struct {
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	MinYear int            `json:"minYear"`
	MaxYear int            `json:"maxYear"`
	Open    bool           `json:"open"`
	Eras    int            `json:"eras"`
	Scheme  catalog.Scheme `json:"scheme"`
}

type dataset struct {
	catalog.DataSet
	source catalog.Source
}

// Resolver is an immutable index of datasets by name. It is safe for
// concurrent use.
type Resolver struct {
	datasets map[string]dataset
	order    []string
	minYear  int
	maxYear  int
	clamp    bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithYearRange makes Resolve clamp years into [min, max].
func WithYearRange(min, max int) Option {
	return func(r *Resolver) {
		if min > max {
			min, max = max, min
		}
		r.minYear, r.maxYear, r.clamp = min, max, true
	}
}

// New indexes the datasets of every catalog. A dataset name defined by more
// than one catalog is an error.
func New(cats []catalog.Catalog, opts ...Option) (*Resolver, error) {
	r := &Resolver{datasets: make(map[string]dataset)}
	for _, c := range cats {
		for _, d := range c.DataSets {
			if prev, ok := r.datasets[d.Name]; ok {
				return nil, &DuplicateDatasetError{Name: d.Name, First: prev.source.Location, Then: c.Source.Location}
			}
			r.datasets[d.Name] = dataset{DataSet: d, source: c.Source}
			r.order = append(r.order, d.Name)
		}
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Resolve picks the tile layer for year and mode. center may be nil; it only
// matters for datasets whose entries declare spatial coverage.
//
// Entries whose interval contains the year are candidates, except bounded
// entries whose coverage excludes a given center. An entry whose coverage
// contains the center beats an unbounded one, then the latest start year
// wins, then the first declared. Without candidates the dataset's latest
// entry is returned with the latest sentinel.
func (r *Resolver) Resolve(year int, mode string, center *orb.Point) (ResolvedTile, error) {
	d, ok := r.datasets[mode]
	if !ok {
		return ResolvedTile{}, &UnknownModeError{Mode: mode}
	}
	year, clamped := r.Clamp(year)

	best := -1
	bestSpecific := false
	for i, e := range d.EraInfo {
		if !e.Era.Contains(year) {
			continue
		}
		specific := false
		if center != nil && e.Bounded() {
			if !e.Covers(*center) {
				continue
			}
			specific = true
		}
		if best < 0 || ranksAbove(specific, e.Era.Start, bestSpecific, d.EraInfo[best].Era.Start) {
			best, bestSpecific = i, specific
		}
	}

	var (
		entry catalog.EraEntry
		era   Era
	)
	if best >= 0 {
		entry = d.EraInfo[best]
		era = Era{Start: entry.Era.Start, End: entry.Era.End, Open: entry.Era.Open}
	} else {
		entry, _ = d.LatestEntry()
		era = Era{Latest: true}
	}

	tmpl := d.source.TemplateFor(d.Name)
	label := d.source.LabelFor(d.Name)
	if entry.Label != "" {
		label += " " + entry.Label
	}
	return ResolvedTile{
		URL:         catalog.Expand(tmpl, d.Name, entry.EraFolder),
		Label:       label,
		Era:         era,
		Mode:        d.Name,
		Folder:      entry.EraFolder,
		Scheme:      catalog.SchemeOf(tmpl),
		Attribution: d.source.Attribution,
		MaxZoom:     d.source.MaxZoom,
		Year:        year,
		Clamped:     clamped,
	}, nil
}

func ranksAbove(specific bool, start int, bestSpecific bool, bestStart int) bool {
	if specific != bestSpecific {
		return specific
	}
	return start > bestStart
}

// Clamp limits year to the configured range. It reports whether the year
// was changed.
func (r *Resolver) Clamp(year int) (int, bool) {
	if !r.clamp {
		return year, false
	}
	switch {
	case year < r.minYear:
		return r.minYear, true
	case year > r.maxYear:
		return r.maxYear, true
	}
	return year, false
}

// CheckYear validates year against the configured range for callers that
// want to reject rather than clamp.
func (r *Resolver) CheckYear(year int) error {
	if !r.clamp {
		return nil
	}
	if year < r.minYear || year > r.maxYear {
		return &OutOfRangeError{Year: year, Min: r.minYear, Max: r.maxYear}
	}
	return nil
}

// YearRange returns the configured clamp range.
func (r *Resolver) YearRange() (min, max int, ok bool) {
	return r.minYear, r.maxYear, r.clamp
}

// HasMode reports whether a dataset named mode is loaded.
func (r *Resolver) HasMode(mode string) bool {
	_, ok := r.datasets[mode]
	return ok
}

// Modes lists the loaded datasets in catalog order.
func (r *Resolver) Modes() []ModeInfo {
	out := make([]ModeInfo, 0, len(r.order))
	for _, name := range r.order {
		d := r.datasets[name]
		min, max, open := d.YearSpan()
		out = append(out, ModeInfo{
			Name:    name,
			Label:   d.source.LabelFor(name),
			MinYear: min,
			MaxYear: max,
			Open:    open,
			Eras:    len(d.EraInfo),
			Scheme:  catalog.SchemeOf(d.source.TemplateFor(name)),
		})
	}
	return out
}

// ModeNames returns the loaded dataset names sorted alphabetically.
func (r *Resolver) ModeNames() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Current holds the active resolver so catalogs can be reloaded without
// blocking readers.
type Current struct {
	p atomic.Pointer[Resolver]
}

// NewCurrent wraps r.
func NewCurrent(r *Resolver) *Current {
	c := &Current{}
	c.p.Store(r)
	return c
}

// Get returns the active resolver. It may be nil before the first Store.
func (c *Current) Get() *Resolver { return c.p.Load() }

// Store swaps in a new resolver.
func (c *Current) Store(r *Resolver) { c.p.Store(r) }
