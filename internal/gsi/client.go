// Package gsi calls the Geospatial Information Authority of Japan web
// services: address search, reverse geocoding and elevation.
package gsi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/joeblew999/kochizu/internal/cache"
	"github.com/joeblew999/kochizu/internal/metrics"
)

var (
	// ErrNoAddress means the reverse geocoder has no address for a point,
	// typically because it lies at sea or outside Japan.
	ErrNoAddress = errors.New("no address at location")
	// ErrNoElevation means the DEM has no value for a point.
	ErrNoElevation = errors.New("no elevation at location")
	// ErrMuniTableNotLoaded means municipality names cannot be resolved yet.
	ErrMuniTableNotLoaded = errors.New("municipality table not loaded")
)

// UpstreamError is a failed call to a GSI endpoint.
type UpstreamError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gsi %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("gsi %s: unexpected status %d", e.Endpoint, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Endpoints are the base URLs of the GSI services.
type Endpoints struct {
	Search    string
	Reverse   string
	Elevation string
}

// Options configures a Client.
type Options struct {
	Endpoints   Endpoints
	HTTPClient  *http.Client
	Timeout     time.Duration
	Cache       cache.Cache
	Muni        *MuniTable
	Concurrency int
	Logger      *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	ep          Endpoints
	http        *http.Client
	cache       cache.Cache
	muni        *MuniTable
	concurrency int
	log         *slog.Logger
}

// New creates a client. Unset options get working defaults; a nil Muni
// table stays unloaded, so addresses carry codes without names.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if opts.Muni == nil {
		opts.Muni = NewMuniTable()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		ep:          opts.Endpoints,
		http:        hc,
		cache:       opts.Cache,
		muni:        opts.Muni,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// Muni returns the municipality table used to name reverse geocoded codes.
func (c *Client) Muni() *MuniTable { return c.muni }

// getJSON issues a GET against base with query q and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, endpoint, base string, q url.Values, v any) error {
	u := base
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDurationMs.WithLabelValues(endpoint).Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.log.Error("gsi_http_error", "endpoint", endpoint, "err", err)
		return &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.log.Warn("gsi_bad_status", "endpoint", endpoint, "status", resp.StatusCode)
		return &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.log.Error("gsi_decode_error", "endpoint", endpoint, "err", err)
		return &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	c.log.Debug("gsi_resp", "endpoint", endpoint, "duration_ms", time.Since(t0).Milliseconds())
	return nil
}

func (c *Client) cached(ctx context.Context, key string, v any) bool {
	return cache.GetJSON(ctx, c.cache, key, v) == nil
}

func (c *Client) store(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, c.cache, key, v); err != nil {
		c.log.Warn("cache_set_error", "key", key, "err", err)
	}
}
