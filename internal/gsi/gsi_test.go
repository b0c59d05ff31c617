package gsi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/cache"
)

const searchBody = `[
 {"geometry":{"coordinates":[139.703,35.6938],"type":"Point"},"type":"Feature","properties":{"addressCode":"","title":"東京都新宿区"}},
 {"geometry":{"coordinates":[139.4754,35.5117],"type":"Point"},"type":"Feature","properties":{"addressCode":"","title":"神奈川県大和市"}}
]`

// fakeGSI serves the three GSI endpoints from fixed answers.
type fakeGSI struct {
	*httptest.Server
	searches atomic.Int32
	reverses atomic.Int32
}

func newFakeGSI(t *testing.T) *fakeGSI {
	t.Helper()
	f := &fakeGSI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/address-search/AddressSearch", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		switch r.URL.Query().Get("q") {
		case "fail":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "none":
			w.Write([]byte(`[]`))
		default:
			w.Write([]byte(searchBody))
		}
	})
	mux.HandleFunc("/reverse-geocoder/LonLatToAddress", func(w http.ResponseWriter, r *http.Request) {
		f.reverses.Add(1)
		switch r.URL.Query().Get("lat") {
		case "35.6938":
			w.Write([]byte(`{"results":{"muniCd":"13104","lv01Nm":"西新宿二丁目"}}`))
		case "35.5117":
			w.Write([]byte(`{"results":{"muniCd":"14213","lv01Nm":"中央林間"}}`))
		case "43.055":
			w.Write([]byte(`{"results":{"muniCd":"01101","lv01Nm":"北一条西"}}`))
		case "1":
			http.Error(w, "down", http.StatusBadGateway)
		default:
			w.Write([]byte(`{}`))
		}
	})
	mux.HandleFunc("/general/dem/scripts/getelevation.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("outtype") != "JSON" {
			http.Error(w, "outtype", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("lat") {
		case "35.5117":
			w.Write([]byte(`{"elevation":71.4,"hsrc":"5m（レーザ）"}`))
		case "0":
			w.Write([]byte(`{"elevation":"-----","hsrc":"-----"}`))
		case "1":
			http.Error(w, "down", http.StatusBadGateway)
		default:
			w.Write([]byte(`{"elevation":null}`))
		}
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGSI) client(t *testing.T, c cache.Cache, muni *MuniTable) *Client {
	return New(Options{
		Endpoints: Endpoints{
			Search:    f.URL + "/address-search/AddressSearch",
			Reverse:   f.URL + "/reverse-geocoder/LonLatToAddress",
			Elevation: f.URL + "/general/dem/scripts/getelevation.php",
		},
		HTTPClient: f.Client(),
		Cache:      c,
		Muni:       muni,
	})
}

func loadedMuni(t *testing.T) *MuniTable {
	t.Helper()
	fh, err := os.Open("testdata/muni.js")
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	m, err := ParseMuniJS(fh)
	if err != nil {
		t.Fatal(err)
	}
	tbl := NewMuniTable()
	tbl.Set(m)
	return tbl
}

func TestParseMuniJS(t *testing.T) {
	tbl := loadedMuni(t)
	if tbl.Len() != 6 {
		t.Fatalf("len=%d, want 6 (malformed row skipped)", tbl.Len())
	}
	m, ok, err := tbl.Lookup("13101")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if m.Prefecture != "東京都" || m.Name != "千代田区" || m.PrefCode != "13" {
		t.Fatalf("muni=%+v", m)
	}
	if m, ok, _ := tbl.Lookup("01101"); !ok || m.Prefecture != "北海道" {
		t.Fatalf("zero padded code not resolved: %+v", m)
	}
	if _, ok, err := tbl.Lookup("00000"); ok || err != nil {
		t.Fatal("unknown code must miss without error")
	}
}

func TestMuniTableNotLoaded(t *testing.T) {
	tbl := NewMuniTable()
	if tbl.Loaded() {
		t.Fatal("new table must be unloaded")
	}
	if _, _, err := tbl.Lookup("13101"); !errors.Is(err, ErrMuniTableNotLoaded) {
		t.Fatalf("got %v", err)
	}
}

func TestMuniTableFetch(t *testing.T) {
	body, err := os.ReadFile("testdata/muni.js")
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	tbl := NewMuniTable()
	if err := tbl.Fetch(context.Background(), srv.Client(), srv.URL+"/js/muni.js"); err != nil {
		t.Fatal(err)
	}
	if !tbl.Loaded() || tbl.Len() != 6 {
		t.Fatalf("loaded=%v len=%d", tbl.Loaded(), tbl.Len())
	}
}

func TestSearch(t *testing.T) {
	f := newFakeGSI(t)
	c := f.client(t, cache.NewMemory(16, time.Minute), nil)
	ctx := context.Background()

	places, err := c.Search(ctx, "新宿")
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 2 || places[0].Title != "東京都新宿区" {
		t.Fatalf("places=%+v", places)
	}
	if places[0].Lat() != 35.6938 || places[0].Lon() != 139.703 {
		t.Fatalf("point=%v", places[0].Point)
	}

	if _, err := c.Search(ctx, "新宿"); err != nil {
		t.Fatal(err)
	}
	if n := f.searches.Load(); n != 1 {
		t.Fatalf("upstream searches=%d, want 1 (second served from cache)", n)
	}

	if got, err := c.Search(ctx, "  "); err != nil || got != nil {
		t.Fatalf("empty query: %v %v", got, err)
	}
	if got, err := c.Search(ctx, "none"); err != nil || len(got) != 0 {
		t.Fatalf("no hits: %v %v", got, err)
	}

	_, err = c.Search(ctx, "fail")
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusInternalServerError {
		t.Fatalf("expected UpstreamError 500, got %v", err)
	}
}

func TestReverseGeocode(t *testing.T) {
	f := newFakeGSI(t)
	ctx := context.Background()

	c := f.client(t, nil, loadedMuni(t))
	addr, err := c.ReverseGeocode(ctx, orb.Point{139.703, 35.6938})
	if err != nil {
		t.Fatal(err)
	}
	want := Address{MuniCode: "13104", Locality: "西新宿二丁目", Prefecture: "東京都", Municipality: "新宿区"}
	if addr != want {
		t.Fatalf("addr=%+v", addr)
	}
	if addr.Detail() != "東京都新宿区" {
		t.Fatalf("detail=%q", addr.Detail())
	}

	if _, err := c.ReverseGeocode(ctx, orb.Point{140, 30}); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("sea point: got %v", err)
	}

	var ue *UpstreamError
	if _, err := c.ReverseGeocode(ctx, orb.Point{1, 1}); !errors.As(err, &ue) {
		t.Fatalf("upstream failure: got %v", err)
	}
}

func TestReverseGeocodeWithoutMuniTable(t *testing.T) {
	f := newFakeGSI(t)
	c := f.client(t, nil, nil)
	addr, err := c.ReverseGeocode(context.Background(), orb.Point{139.4754, 35.5117})
	if !errors.Is(err, ErrMuniTableNotLoaded) {
		t.Fatalf("got %v", err)
	}
	if addr.MuniCode != "14213" || addr.Prefecture != "" {
		t.Fatalf("addr=%+v", addr)
	}
}

func TestElevation(t *testing.T) {
	f := newFakeGSI(t)
	c := f.client(t, cache.NewMemory(16, time.Minute), nil)
	ctx := context.Background()

	m, err := c.Elevation(ctx, orb.Point{139.4754, 35.5117})
	if err != nil || m != 71.4 {
		t.Fatalf("elevation=%v err=%v", m, err)
	}
	if _, err := c.Elevation(ctx, orb.Point{0, 0}); !errors.Is(err, ErrNoElevation) {
		t.Fatalf("dashes: got %v", err)
	}
	if _, err := c.Elevation(ctx, orb.Point{140, 30}); !errors.Is(err, ErrNoElevation) {
		t.Fatalf("null: got %v", err)
	}
	if _, err := c.Elevation(ctx, orb.Point{140, 30}); !errors.Is(err, ErrNoElevation) {
		t.Fatalf("cached null: got %v", err)
	}
}

func TestParseElevation(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`12.5`, 12.5, true},
		{`"8.25"`, 8.25, true},
		{`null`, 0, false},
		{`"-----"`, 0, false},
		{``, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseElevation([]byte(tt.raw))
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseElevation(%q)=(%v,%v), want (%v,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSuggest(t *testing.T) {
	f := newFakeGSI(t)
	c := f.client(t, nil, loadedMuni(t))

	got, err := c.Suggest(context.Background(), "駅")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("suggestions=%d", len(got))
	}
	if got[0].Place.Title != "東京都新宿区" || got[0].Detail != "東京都新宿区" {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].Detail != "神奈川県大和市" {
		t.Fatalf("second=%+v", got[1])
	}
	if n := f.reverses.Load(); n != 2 {
		t.Fatalf("reverse calls=%d", n)
	}
}

func TestPlace(t *testing.T) {
	f := newFakeGSI(t)
	c := f.client(t, nil, loadedMuni(t))
	ctx := context.Background()

	info, err := c.Place(ctx, orb.Point{139.4754, 35.5117}, "中央林間")
	if err != nil {
		t.Fatal(err)
	}
	if info.Address.Municipality != "大和市" || info.Elevation == nil || *info.Elevation != 71.4 {
		t.Fatalf("info=%+v", info)
	}

	info, err = c.Place(ctx, orb.Point{140, 30}, "海上")
	if err != nil {
		t.Fatalf("missing data must not fail: %v", err)
	}
	if info.Elevation != nil || info.Address.MuniCode != "" {
		t.Fatalf("info=%+v", info)
	}

	if _, err := c.Place(ctx, orb.Point{1, 1}, "down"); err == nil {
		t.Fatal("expected error when both lookups fail upstream")
	}
}

func TestFeatureCollection(t *testing.T) {
	fc := FeatureCollection([]Place{{Title: "a", Point: orb.Point{139, 35}}})
	if len(fc.Features) != 1 || fc.Features[0].Properties["title"] != "a" {
		t.Fatalf("fc=%+v", fc)
	}
}
