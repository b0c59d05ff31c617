// Package viewer holds the map viewer state and the single update step that
// reacts to slider, mode and pan changes.
package viewer

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/resolver"
)

// State is what the browser shows: year, mode and map view.
type State struct {
	Year int     `json:"year"`
	Mode string  `json:"mode"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Zoom int     `json:"zoom"`
}

// Center returns the map center as a point.
func (s State) Center() orb.Point { return orb.Point{s.Lon, s.Lat} }

// Kind names a state change.
type Kind string

const (
	KindYear   Kind = "year"
	KindMode   Kind = "mode"
	KindToggle Kind = "toggle"
	KindPan    Kind = "pan"
)

// Change is one user interaction.
type Change struct {
	Kind Kind
	Year int
	Mode string
	Lat  float64
	Lon  float64
	Zoom int
}

// View is the rendered outcome of a state.
type View struct {
	Tile      resolver.ResolvedTile `json:"tile"`
	EraText   string                `json:"eraText"`
	YearLabel string                `json:"yearLabel"`
	NextMode  string                `json:"nextMode"`
}

// Updater applies changes against the active resolver.
type Updater struct {
	Modes  []string
	Suffix string
}

// Update applies ch to s, clamps the year and resolves the tile for the new
// state. The returned state carries the clamped year.
func (u Updater) Update(r *resolver.Resolver, s State, ch Change) (State, View, error) {
	switch ch.Kind {
	case KindYear:
		s.Year = ch.Year
	case KindMode:
		s.Mode = ch.Mode
	case KindToggle:
		s.Mode = u.next(r, s.Mode)
	case KindPan:
		s.Lat, s.Lon = ch.Lat, ch.Lon
		if ch.Zoom > 0 {
			s.Zoom = ch.Zoom
		}
	case "":
	default:
		return s, View{}, fmt.Errorf("unknown change %q", ch.Kind)
	}

	s.Year, _ = r.Clamp(s.Year)
	center := s.Center()
	tile, err := r.Resolve(s.Year, s.Mode, &center)
	if err != nil {
		return s, View{}, err
	}
	return s, View{
		Tile:      tile,
		EraText:   FormatEra(tile.Era, u.Suffix),
		YearLabel: strconv.Itoa(s.Year) + u.Suffix,
		NextMode:  u.next(r, s.Mode),
	}, nil
}

// next returns the loaded mode after current in toggle order, wrapping
// around. A current mode outside the order starts from the first.
func (u Updater) next(r *resolver.Resolver, current string) string {
	loaded := make([]string, 0, len(u.Modes))
	for _, m := range u.Modes {
		if r.HasMode(m) {
			loaded = append(loaded, m)
		}
	}
	if len(loaded) == 0 {
		return current
	}
	for i, m := range loaded {
		if m == current {
			return loaded[(i+1)%len(loaded)]
		}
	}
	return loaded[0]
}

// FormatEra renders an era for the status line.
func FormatEra(e resolver.Era, suffix string) string {
	switch {
	case e.Latest:
		return "最新"
	case e.Open:
		return fmt.Sprintf("%d%s-", e.Start, suffix)
	case e.Start == e.End:
		return fmt.Sprintf("%d%s", e.Start, suffix)
	}
	return fmt.Sprintf("%d%s-%d%s", e.Start, suffix, e.End, suffix)
}
