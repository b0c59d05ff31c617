package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestEraRangeUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    EraRange
		wantErr bool
	}{
		{in: `[1890, 1950]`, want: EraRange{Start: 1890, End: 1950}},
		{in: `[2020, null]`, want: EraRange{Start: 2020, Open: true}},
		{in: `[2020, "latest"]`, want: EraRange{Start: 2020, Open: true}},
		{in: `[2020, "Present"]`, want: EraRange{Start: 2020, Open: true}},
		{in: `[2020, "soon"]`, wantErr: true},
		{in: `[1950, 1890]`, wantErr: true},
		{in: `[1950]`, wantErr: true},
		{in: `"1950"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got EraRange
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEraRangeContains(t *testing.T) {
	closed := EraRange{Start: 1890, End: 1950}
	open := EraRange{Start: 2000, Open: true}

	if !closed.Contains(1890) || !closed.Contains(1950) {
		t.Fatal("closed range must include both ends")
	}
	if closed.Contains(1889) || closed.Contains(1951) {
		t.Fatal("closed range leaks outside its ends")
	}
	if !open.Contains(3000) || open.Contains(1999) {
		t.Fatal("open range bounds wrong")
	}
}

func TestParseTestdata(t *testing.T) {
	f, err := os.Open("testdata/kjmap.json")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 1 || ds[0].Name != "kjmap" {
		t.Fatalf("unexpected datasets: %+v", ds)
	}
	if got := len(ds[0].EraInfo); got != 5 {
		t.Fatalf("EraInfo len=%d, want 5", got)
	}

	latest, ok := ds[0].LatestEntry()
	if !ok || latest.EraFolder != "tokyo50/09" {
		t.Fatalf("LatestEntry=%+v, want flagged tokyo50/09", latest)
	}

	min, max, open := ds[0].YearSpan()
	if min != 1888 || max != 1990 || !open {
		t.Fatalf("YearSpan=(%d,%d,%v)", min, max, open)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	docs := map[string]string{
		"no name":      `[{"EraInfo":[{"Era":[1,2],"EraFolder":"a"}]}]`,
		"duplicate":    `[{"DataSet":"a","EraInfo":[{"Era":[1,2],"EraFolder":"a"}]},{"DataSet":"a","EraInfo":[{"Era":[1,2],"EraFolder":"a"}]}]`,
		"no eras":      `[{"DataSet":"a","EraInfo":[]}]`,
		"no folder":    `[{"DataSet":"a","EraInfo":[{"Era":[1,2]}]}]`,
		"short bounds": `[{"DataSet":"a","EraInfo":[{"Era":[1,2],"EraFolder":"a","Bounds":[1,2,3]}]}]`,
		"not array":    `{"DataSet":"a"}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEntryCovers(t *testing.T) {
	f, err := os.Open("testdata/kjmap.json")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ds, err := Parse(f)
	if err != nil {
		t.Fatal(err)
	}
	eras := ds[0].EraInfo

	tokyo := orb.Point{139.75, 35.68}
	nagoya := orb.Point{136.9, 35.17}

	if !eras[0].Covers(tokyo) || eras[0].Covers(nagoya) {
		t.Fatal("tokyo bounds wrong")
	}
	if !eras[2].Covers(nagoya) || eras[2].Covers(tokyo) {
		t.Fatal("chukyo area wrong")
	}
	if eras[3].Bounded() || !eras[3].Covers(tokyo) {
		t.Fatal("unbounded entry must cover everything")
	}
}

func TestExpand(t *testing.T) {
	got := Expand("https://ktgis.net/kjmapw/kjtilemap/{dataset}/{folder}/{z}/{x}/{-y}.png", "kjmap", "/tokyo50/00/")
	want := "https://ktgis.net/kjmapw/kjtilemap/kjmap/tokyo50/00/{z}/{x}/{-y}.png"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if SchemeOf(got) != SchemeTMS {
		t.Fatal("{-y} template must be TMS")
	}
	if SchemeOf("a/{z}/{x}/{y}.png") != SchemeXYZ {
		t.Fatal("{y} template must be XYZ")
	}
}

func TestTileURL(t *testing.T) {
	chuoRinkan := orb.Point{139.4754, 35.5117}
	got := TileURL("https://cyberjapandata.gsi.go.jp/xyz/std/{z}/{x}/{y}.png", chuoRinkan, 15)
	if got != "https://cyberjapandata.gsi.go.jp/xyz/std/15/29079/12922.png" {
		t.Fatalf("xyz url=%q", got)
	}
	got = TileURL("https://ktgis.net/kjmapw/kjtilemap/tokyo50/00/{z}/{x}/{-y}.png", chuoRinkan, 15)
	if got != "https://ktgis.net/kjmapw/kjtilemap/tokyo50/00/15/29079/19845.png" {
		t.Fatalf("tms url=%q", got)
	}
	if got := TileURL("{z}/{x}/{y}", orb.Point{0, 0}, 0); got != "0/0/0" {
		t.Fatalf("zoom 0 url=%q", got)
	}
}

func TestLoadAllFromFilesAndHTTP(t *testing.T) {
	body, err := os.ReadFile("testdata/topo.json")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), nil)
	cats, err := l.LoadAll(context.Background(), []Source{
		{Location: "testdata/kjmap.json"},
		{Location: srv.URL + "/topo.json"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("catalogs=%d, want 2", len(cats))
	}
	if cats[0].DataSets[0].Name != "kjmap" || cats[1].DataSets[0].Name != "topo" {
		t.Fatal("catalog order must follow source order")
	}
}

func TestLoadAllFailsAsWhole(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := NewLoader(srv.Client(), nil)
	cats, err := l.LoadAll(context.Background(), []Source{
		{Location: "testdata/topo.json"},
		{Location: srv.URL + "/missing.json"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if cats != nil {
		t.Fatal("LoadAll must not return partial catalogs")
	}
	if !IsLoadError(err) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
}

func TestLoadAvailableReturnsPartial(t *testing.T) {
	l := NewLoader(nil, nil)
	cats, err := l.LoadAvailable(context.Background(), []Source{
		{Location: "testdata/topo.json"},
		{Location: "testdata/broken.json"},
		{Location: "testdata/does-not-exist.json"},
	})
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if len(le.Failures) != 2 {
		t.Fatalf("failures=%d, want 2", len(le.Failures))
	}
	if le.Failures[0].Location != "testdata/broken.json" || le.Failures[1].Location != "testdata/does-not-exist.json" {
		t.Fatalf("failures out of source order: %v", le.Failures)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("missing file error should be reachable through the load error")
	}
	if len(cats) != 1 || cats[0].DataSets[0].Name != "topo" {
		t.Fatalf("unexpected partial result: %+v", cats)
	}
}

func TestLoadAvailableFailureOrder(t *testing.T) {
	var sources []Source
	for i := range 20 {
		sources = append(sources, Source{Location: fmt.Sprintf("testdata/missing-%02d.json", i)})
	}
	l := NewLoader(nil, nil)
	for range 5 {
		_, err := l.LoadAvailable(context.Background(), sources)
		var le *LoadError
		if !errors.As(err, &le) {
			t.Fatalf("expected *LoadError, got %v", err)
		}
		if len(le.Failures) != len(sources) {
			t.Fatalf("failures=%d, want %d", len(le.Failures), len(sources))
		}
		for i, f := range le.Failures {
			if f.Location != sources[i].Location {
				t.Fatalf("failure %d is %s, want %s", i, f.Location, sources[i].Location)
			}
		}
	}
}
