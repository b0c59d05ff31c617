package resolver

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/catalog"
)

const topoDoc = `[{"DataSet":"topo","EraInfo":[{"Era":[1890,1950],"EraFolder":"old"},{"Era":[1951,2025],"EraFolder":"new"}]}]`

func mustCatalog(t *testing.T, doc string, src catalog.Source) catalog.Catalog {
	t.Helper()
	ds, err := catalog.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	return catalog.Catalog{Source: src, DataSets: ds}
}

func topoResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	r, err := New([]catalog.Catalog{mustCatalog(t, topoDoc, catalog.Source{
		Location: "topo.json",
		Template: "https://tiles.example/{folder}/{z}/{x}/{y}.png",
		Labels:   map[string]string{"topo": "Topographic"},
	})}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveBoundaryYear(t *testing.T) {
	r := topoResolver(t)
	got, err := r.Resolve(1950, "topo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.URL, "old") {
		t.Fatalf("url=%q, want old folder", got.URL)
	}
	if got.Era.Latest || got.Era.Start != 1890 || got.Era.End != 1950 {
		t.Fatalf("era=%+v, want [1890,1950]", got.Era)
	}
	if got.URL != "https://tiles.example/old/{z}/{x}/{y}.png" {
		t.Fatalf("url=%q", got.URL)
	}
	if got.Label != "Topographic" {
		t.Fatalf("label=%q", got.Label)
	}
}

func TestResolveFallsBackToLatest(t *testing.T) {
	r := topoResolver(t)
	got, err := r.Resolve(2030, "topo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Folder != "new" || !got.Era.Latest {
		t.Fatalf("got %+v, want latest entry new", got)
	}
	b, err := json.Marshal(got.Era)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"latest"` {
		t.Fatalf("era json=%s", b)
	}

	got, err = r.Resolve(1800, "topo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Folder != "new" || !got.Era.Latest {
		t.Fatalf("year before every era: got %+v", got)
	}
}

func TestResolveUnknownMode(t *testing.T) {
	r := topoResolver(t)
	_, err := r.Resolve(1950, "satellite", nil)
	var ume *UnknownModeError
	if !errors.As(err, &ume) {
		t.Fatalf("expected UnknownModeError, got %v", err)
	}
	if ume.Mode != "satellite" {
		t.Fatalf("mode=%q", ume.Mode)
	}
}

func TestResolveSharedBoundaryPrefersLaterStart(t *testing.T) {
	doc := `[{"DataSet":"photo","EraInfo":[
		{"Era":[1945,1960],"EraFolder":"usa"},
		{"Era":[1960,1970],"EraFolder":"ort_old10"},
		{"Era":[1950,1965],"EraFolder":"mid"}
	]}]`
	r, err := New([]catalog.Catalog{mustCatalog(t, doc, catalog.Source{Location: "photo.json"})})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Resolve(1960, "photo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Folder != "ort_old10" {
		t.Fatalf("folder=%q, want ort_old10", got.Folder)
	}
}

func TestResolveEqualStartKeepsFirstDeclared(t *testing.T) {
	doc := `[{"DataSet":"d","EraInfo":[{"Era":[1900,1950],"EraFolder":"a"},{"Era":[1900,1960],"EraFolder":"b"}]}]`
	r, err := New([]catalog.Catalog{mustCatalog(t, doc, catalog.Source{})})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := r.Resolve(1920, "d", nil)
	if got.Folder != "a" {
		t.Fatalf("folder=%q, want a", got.Folder)
	}
}

func TestResolveSpatialPartition(t *testing.T) {
	doc := `[{"DataSet":"kjmap","EraInfo":[
		{"Era":[1890,1930],"EraFolder":"japan/00"},
		{"Era":[1896,1909],"EraFolder":"tokyo50/00","Bounds":[138.9,35.3,140.1,36.1]},
		{"Era":[1888,1898],"EraFolder":"chukyo/00","Bounds":[136.5,34.8,137.3,35.4]},
		{"Era":[1990,"latest"],"EraFolder":"tokyo50/09"}
	]}]`
	r, err := New([]catalog.Catalog{mustCatalog(t, doc, catalog.Source{
		Template: "https://ktgis.net/kjmapw/kjtilemap/{folder}/{z}/{x}/{-y}.png",
	})})
	if err != nil {
		t.Fatal(err)
	}

	tokyo := orb.Point{139.75, 35.68}
	nagoya := orb.Point{136.9, 35.17}
	sapporo := orb.Point{141.35, 43.06}

	tests := []struct {
		name   string
		year   int
		center *orb.Point
		want   string
	}{
		{"tokyo sheet beats national", 1900, &tokyo, "tokyo50/00"},
		{"chukyo sheet beats national", 1895, &nagoya, "chukyo/00"},
		{"outside every sheet uses national", 1900, &sapporo, "japan/00"},
		{"no center keeps latest start", 1897, nil, "tokyo50/00"},
		{"bounded sheet outside its years", 1920, &tokyo, "japan/00"},
		{"open ended era", 2024, &sapporo, "tokyo50/09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.year, "kjmap", tt.center)
			if err != nil {
				t.Fatal(err)
			}
			if got.Folder != tt.want {
				t.Fatalf("folder=%q, want %q", got.Folder, tt.want)
			}
			if got.Scheme != catalog.SchemeTMS {
				t.Fatalf("scheme=%q, want tms", got.Scheme)
			}
		})
	}
}

func TestResolveEveryYearInRange(t *testing.T) {
	r := topoResolver(t)
	for year := 1890; year <= 2025; year++ {
		got, err := r.Resolve(year, "topo", nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.Era.Latest {
			t.Fatalf("year %d fell back to latest", year)
		}
		if year < got.Era.Start || year > got.Era.End {
			t.Fatalf("year %d resolved to era %+v", year, got.Era)
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := topoResolver(t)
	center := orb.Point{139.47, 35.51}
	a, err := r.Resolve(1960, "topo", &center)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Resolve(1960, "topo", &center)
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("not idempotent:\n%s\n%s", ja, jb)
	}
}

func TestResolveClampsToYearRange(t *testing.T) {
	r := topoResolver(t, WithYearRange(1890, 2025))

	got, err := r.Resolve(2030, "topo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Clamped || got.Year != 2025 || got.Folder != "new" || got.Era.Latest {
		t.Fatalf("got %+v, want clamped 2025 in new era", got)
	}

	got, _ = r.Resolve(1700, "topo", nil)
	if !got.Clamped || got.Year != 1890 || got.Folder != "old" {
		t.Fatalf("got %+v, want clamped 1890 in old era", got)
	}

	var oor *OutOfRangeError
	if err := r.CheckYear(2030); !errors.As(err, &oor) {
		t.Fatalf("CheckYear: expected OutOfRangeError, got %v", err)
	}
	if err := r.CheckYear(1950); err != nil {
		t.Fatalf("CheckYear(1950)=%v", err)
	}
}

func TestNewRejectsDuplicateDataset(t *testing.T) {
	a := mustCatalog(t, topoDoc, catalog.Source{Location: "a.json"})
	b := mustCatalog(t, topoDoc, catalog.Source{Location: "b.json"})
	_, err := New([]catalog.Catalog{a, b})
	var dup *DuplicateDatasetError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateDatasetError, got %v", err)
	}
}

func TestModes(t *testing.T) {
	r := topoResolver(t)
	modes := r.Modes()
	if len(modes) != 1 {
		t.Fatalf("modes=%d", len(modes))
	}
	m := modes[0]
	if m.Name != "topo" || m.Label != "Topographic" || m.MinYear != 1890 || m.MaxYear != 2025 || m.Eras != 2 {
		t.Fatalf("unexpected mode info %+v", m)
	}
}

func TestCurrentSwap(t *testing.T) {
	c := NewCurrent(topoResolver(t))
	if !c.Get().HasMode("topo") {
		t.Fatal("expected topo")
	}
	c.Store(&Resolver{datasets: map[string]dataset{}})
	if c.Get().HasMode("topo") {
		t.Fatal("swap did not take effect")
	}
}

func TestResolvedTileAt(t *testing.T) {
	r := topoResolver(t)
	got, err := r.Resolve(1950, "topo", nil)
	if err != nil {
		t.Fatal(err)
	}
	if u := got.At(orb.Point{139.4754, 35.5117}, 15); u != "https://tiles.example/old/15/29079/12922.png" {
		t.Fatalf("url=%q", u)
	}
}
