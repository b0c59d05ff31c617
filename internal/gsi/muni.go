package gsi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
)

// Muni is one row of the GSI municipality table.
type Muni struct {
	PrefCode   string `json:"prefCode"`
	Prefecture string `json:"prefecture"`
	Code       string `json:"code"`
	Name       string `json:"name"`
}

// MuniTable maps municipality codes to names. It starts empty and reports
// ErrMuniTableNotLoaded until a table is set.
type MuniTable struct {
	m atomic.Pointer[map[string]Muni]
}

// NewMuniTable returns an unloaded table.
func NewMuniTable() *MuniTable { return &MuniTable{} }

// Set installs a parsed table.
func (t *MuniTable) Set(m map[string]Muni) { t.m.Store(&m) }

// Loaded reports whether a table has been installed.
func (t *MuniTable) Loaded() bool { return t.m.Load() != nil }

// Len is the number of municipalities, 0 when unloaded.
func (t *MuniTable) Len() int {
	if m := t.m.Load(); m != nil {
		return len(*m)
	}
	return 0
}

// Lookup resolves a municipality code. Codes are tried as given and without
// leading zeros, since the reverse geocoder and muni.js disagree on padding.
func (t *MuniTable) Lookup(code string) (Muni, bool, error) {
	m := t.m.Load()
	if m == nil {
		return Muni{}, false, ErrMuniTableNotLoaded
	}
	if code == "" {
		return Muni{}, false, nil
	}
	if v, ok := (*m)[code]; ok {
		return v, true, nil
	}
	if v, ok := (*m)[strings.TrimLeft(code, "0")]; ok {
		return v, true, nil
	}
	return Muni{}, false, nil
}

// Fetch downloads and installs the table from url.
func (t *MuniTable) Fetch(ctx context.Context, hc *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return &UpstreamError{Endpoint: "muni", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Endpoint: "muni", Status: resp.StatusCode}
	}
	m, err := ParseMuniJS(resp.Body)
	if err != nil {
		return err
	}
	t.Set(m)
	return nil
}

// GSI.MUNI_ARRAY["13101"] = '13,東京都,13101,千代田区';
var muniLine = regexp.MustCompile(`MUNI_ARRAY\["(\d+)"\]\s*=\s*'([^']*)'`)

// ParseMuniJS reads the muni.js script published by GSI. Each assignment
// holds "prefCode,prefecture,code,name".
func ParseMuniJS(r io.Reader) (map[string]Muni, error) {
	out := make(map[string]Muni, 2000)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		for _, sm := range muniLine.FindAllStringSubmatch(sc.Text(), -1) {
			parts := strings.Split(sm[2], ",")
			if len(parts) < 4 {
				continue
			}
			out[sm[1]] = Muni{
				PrefCode:   parts[0],
				Prefecture: parts[1],
				Code:       parts[2],
				Name:       parts[3],
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading muni table: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reading muni table: no entries")
	}
	return out, nil
}
