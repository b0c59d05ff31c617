package catalog

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Scheme is the tile row numbering of a tile service.
type Scheme string

const (
	SchemeXYZ Scheme = "xyz"
	SchemeTMS Scheme = "tms"
)

// Source describes where a catalog document lives and how its era folders
// are turned into tile URLs.
type Source struct {
	Location    string            `yaml:"source" json:"source"`
	Template    string            `yaml:"template" json:"template"`
	Templates   map[string]string `yaml:"templates,omitempty" json:"templates,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Attribution string            `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	MaxZoom     int               `yaml:"max_zoom,omitempty" json:"maxZoom,omitempty"`
}

// DefaultTemplate is used when a source does not configure one.
const DefaultTemplate = "{folder}/{z}/{x}/{y}.png"

// TemplateFor returns the URL template for a dataset.
func (s Source) TemplateFor(dataset string) string {
	if t, ok := s.Templates[dataset]; ok && t != "" {
		return t
	}
	if s.Template != "" {
		return s.Template
	}
	return DefaultTemplate
}

// LabelFor returns the display label for a dataset.
func (s Source) LabelFor(dataset string) string {
	if l, ok := s.Labels[dataset]; ok && l != "" {
		return l
	}
	return dataset
}

// SchemeOf reports the tile scheme implied by a template: {-y} means TMS.
func SchemeOf(template string) Scheme {
	if strings.Contains(template, "{-y}") {
		return SchemeTMS
	}
	return SchemeXYZ
}

// Expand substitutes the dataset and folder placeholders, leaving the
// {z}/{x}/{y} placeholders for the map widget.
func Expand(template, dataset, folder string) string {
	r := strings.NewReplacer(
		"{dataset}", dataset,
		"{folder}", strings.Trim(folder, "/"),
	)
	return r.Replace(template)
}

// TileURL fills the {z}/{x}/{y} placeholders of an expanded template with
// the tile covering p at zoom z. {-y} counts rows from the south edge.
func TileURL(expanded string, p orb.Point, z int) string {
	t := maptile.At(p, maptile.Zoom(z))
	flipped := (uint32(1) << uint32(z)) - 1 - t.Y
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
		"{-y}", strconv.FormatUint(uint64(flipped), 10),
	)
	return r.Replace(expanded)
}
