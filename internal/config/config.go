// Package config loads the viewer configuration file: catalog sources, the
// year range, mode order, GSI endpoints, cache and spots settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/kochizu/internal/catalog"
)

// Config is the contents of kochizu.yaml.
type Config struct {
	Years                YearRange        `yaml:"years"`
	Catalogs             []catalog.Source `yaml:"catalogs"`
	Modes                []string         `yaml:"modes"`
	DefaultMode          string           `yaml:"default_mode"`
	AllowPartialCatalogs bool             `yaml:"allow_partial_catalogs"`
	Spots                string           `yaml:"spots"`
	GSI                  GSI              `yaml:"gsi"`
	Cache                Cache            `yaml:"cache"`
	Map                  Map              `yaml:"map"`
}

// YearRange drives the slider and the resolver's clamp range.
type YearRange struct {
	Min       int    `yaml:"min"`
	Max       int    `yaml:"max"`
	Start     int    `yaml:"start"`
	Step      int    `yaml:"step"`
	TickEvery int    `yaml:"tick_every"`
	Suffix    string `yaml:"suffix"`
}

// GSI holds the GSI web service endpoints.
type GSI struct {
	SearchURL    string        `yaml:"search_url"`
	ReverseURL   string        `yaml:"reverse_url"`
	ElevationURL string        `yaml:"elevation_url"`
	MuniURL      string        `yaml:"muni_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
}

// Cache sizes the upstream response cache. RedisAddr selects Redis.
type Cache struct {
	RedisAddr string        `yaml:"redis_addr"`
	RedisPass string        `yaml:"redis_pass"`
	RedisDB   int           `yaml:"redis_db"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
}

// Map is the initial view of the map widget.
type Map struct {
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
	Zoom int     `yaml:"zoom"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Years: YearRange{Min: 1890, Max: 2025, Start: 2025, Step: 1, TickEvery: 10, Suffix: "年"},
		Catalogs: []catalog.Source{
			{
				Location:    "data/catalogs/gsi_standard_tile.json",
				Template:    "https://cyberjapandata.gsi.go.jp/xyz/{folder}/{z}/{x}/{y}.png",
				Labels:      map[string]string{"std": "地理院地図 標準", "pale": "地理院地図 淡色"},
				Attribution: gsiAttribution,
				MaxZoom:     18,
			},
			{
				Location:    "data/catalogs/topo_tile.json",
				Template:    "https://ktgis.net/kjmapw/kjtilemap/tokyo50/{folder}/{z}/{x}/{-y}.png",
				Labels:      map[string]string{"topo": "旧版地形図"},
				Attribution: kjmapAttribution,
				MaxZoom:     16,
			},
			{
				Location:    "data/catalogs/photo_tile.json",
				Template:    "https://cyberjapandata.gsi.go.jp/xyz/{folder}/{z}/{x}/{y}.png",
				Templates:   map[string]string{},
				Labels:      map[string]string{"photo": "空中写真"},
				Attribution: gsiAttribution,
				MaxZoom:     18,
			},
			{
				Location:    "data/catalogs/kjmap_tile.json",
				Template:    "https://ktgis.net/kjmapw/kjtilemap/{folder}/{z}/{x}/{-y}.png",
				Labels:      map[string]string{"kjmap": "今昔マップ"},
				Attribution: kjmapAttribution,
				MaxZoom:     16,
			},
		},
		Modes:       []string{"topo", "photo"},
		DefaultMode: "topo",
		Spots:       "data/spots.yaml",
		GSI: GSI{
			SearchURL:    "https://msearch.gsi.go.jp/address-search/AddressSearch",
			ReverseURL:   "https://mreversegeocoder.gsi.go.jp/reverse-geocoder/LonLatToAddress",
			ElevationURL: "https://cyberjapandata2.gsi.go.jp/general/dem/scripts/getelevation.php",
			MuniURL:      "https://maps.gsi.go.jp/js/muni.js",
			Timeout:      10 * time.Second,
			Concurrency:  4,
		},
		Cache: Cache{Size: 4096, TTL: time.Hour},
		Map:   Map{Lat: 35.5117, Lon: 139.4754, Zoom: 15},
	}
}

const (
	gsiAttribution   = `出典: <a href="https://maps.gsi.go.jp/development/ichiran.html" target="_blank">地理院タイル</a>`
	kjmapAttribution = `<a href="https://ktgis.net/kjmapw/" target="_blank">今昔マップ on the web</a>`
)

// Load reads path over the defaults. A missing file yields the defaults.
// Relative catalog and spots paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return parse(b, filepath.Dir(path))
}

func parse(b []byte, baseDir string) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	for i := range cfg.Catalogs {
		cfg.Catalogs[i].Location = resolvePath(baseDir, cfg.Catalogs[i].Location)
	}
	cfg.Spots = resolvePath(baseDir, cfg.Spots)
	return cfg, cfg.Validate()
}

func resolvePath(base, p string) string {
	if p == "" || base == "" || base == "." || filepath.IsAbs(p) || isURL(p) {
		return p
	}
	return filepath.Join(base, p)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Validate checks invariants the rest of the service relies on.
func (c Config) Validate() error {
	y := c.Years
	if y.Min > y.Max {
		return fmt.Errorf("config: years.min %d > years.max %d", y.Min, y.Max)
	}
	if y.Start < y.Min || y.Start > y.Max {
		return fmt.Errorf("config: years.start %d outside %d-%d", y.Start, y.Min, y.Max)
	}
	if y.Step <= 0 {
		return fmt.Errorf("config: years.step must be positive")
	}
	if y.TickEvery < 0 {
		return fmt.Errorf("config: years.tick_every must not be negative")
	}
	if len(c.Catalogs) == 0 {
		return fmt.Errorf("config: no catalogs configured")
	}
	for i, s := range c.Catalogs {
		if s.Location == "" {
			return fmt.Errorf("config: catalogs[%d] has no source", i)
		}
	}
	if c.DefaultMode == "" && len(c.Modes) == 0 {
		return fmt.Errorf("config: default_mode or modes required")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("config: map.zoom %d out of range", c.Map.Zoom)
	}
	return nil
}

// InitialMode is the mode the viewer starts in.
func (c Config) InitialMode() string {
	if c.DefaultMode != "" {
		return c.DefaultMode
	}
	return c.Modes[0]
}
