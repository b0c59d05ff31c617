package gsi

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/joeblew999/kochizu/internal/cache"
)

// Address is the reverse geocoding result for a point.
type Address struct {
	MuniCode     string `json:"muniCode"`
	Locality     string `json:"locality"`
	Prefecture   string `json:"prefecture"`
	Municipality string `json:"municipality"`
}

// Detail is the "prefecture + municipality" line shown under suggestions.
func (a Address) Detail() string { return a.Prefecture + a.Municipality }

type reverseResponse struct {
	Results *struct {
		MuniCd string `json:"muniCd"`
		Lv01Nm string `json:"lv01Nm"`
	} `json:"results"`
}

// ReverseGeocode returns the address at p. The municipality code is named
// through the client's MuniTable; when that table has not loaded yet the
// address is returned with empty names together with ErrMuniTableNotLoaded.
// Unknown codes leave the names empty without an error.
func (c *Client) ReverseGeocode(ctx context.Context, p orb.Point) (Address, error) {
	addr, err := c.rawAddress(ctx, p)
	if err != nil {
		return Address{}, err
	}
	m, ok, err := c.muni.Lookup(addr.MuniCode)
	if err != nil {
		return addr, err
	}
	if ok {
		addr.Prefecture = m.Prefecture
		addr.Municipality = m.Name
	}
	return addr, nil
}

func (c *Client) rawAddress(ctx context.Context, p orb.Point) (Address, error) {
	key := cache.CoordKey("addr", p.Lat(), p.Lon())
	var addr Address
	if c.cached(ctx, key, &addr) {
		if addr.MuniCode == "" {
			return Address{}, ErrNoAddress
		}
		return addr, nil
	}

	q := url.Values{
		"lat": {strconv.FormatFloat(p.Lat(), 'f', -1, 64)},
		"lon": {strconv.FormatFloat(p.Lon(), 'f', -1, 64)},
	}
	var resp reverseResponse
	if err := c.getJSON(ctx, "reverse", c.ep.Reverse, q, &resp); err != nil {
		return Address{}, err
	}
	if resp.Results != nil {
		addr = Address{MuniCode: resp.Results.MuniCd, Locality: resp.Results.Lv01Nm}
	}
	// Empty answers are cached too: points at sea stay empty.
	c.store(ctx, key, addr)
	if addr.MuniCode == "" {
		return Address{}, ErrNoAddress
	}
	return addr, nil
}

// IsNotFound reports whether err means the location has no data, as opposed
// to an upstream failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoAddress) || errors.Is(err, ErrNoElevation)
}
