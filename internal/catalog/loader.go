package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/kochizu/internal/metrics"
)

// maxCatalogBytes caps a single catalog document.
const maxCatalogBytes = 8 << 20

// Loader fetches and parses catalog documents from files or HTTP.
type Loader struct {
	client *http.Client
	log    *slog.Logger
}

// NewLoader creates a loader. A nil client gets a 15s timeout client.
func NewLoader(client *http.Client, log *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{client: client, log: log}
}

// LoadAll fetches every source concurrently and fails as a whole if any of
// them fails. The first failure cancels the remaining fetches.
func (l *Loader) LoadAll(ctx context.Context, sources []Source) ([]Catalog, error) {
	out := make([]Catalog, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			ds, err := l.loadOne(gctx, src)
			if err != nil {
				return newLoadError(src.Location, err)
			}
			out[i] = Catalog{Source: src, DataSets: ds}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAvailable fetches every source and returns the catalogs that loaded.
// When some sources fail, the returned error is a *LoadError listing them,
// and the caller decides whether the partial result is usable.
func (l *Loader) LoadAvailable(ctx context.Context, sources []Source) ([]Catalog, error) {
	var (
		wg     sync.WaitGroup
		loaded = make([]*Catalog, len(sources))
		errs   = make([]error, len(sources))
	)
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := l.loadOne(ctx, src)
			if err != nil {
				errs[i] = err
				return
			}
			loaded[i] = &Catalog{Source: src, DataSets: ds}
		}()
	}
	wg.Wait()

	out := make([]Catalog, 0, len(sources))
	var failures []SourceError
	for i, c := range loaded {
		if c != nil {
			out = append(out, *c)
		}
		if errs[i] != nil {
			failures = append(failures, SourceError{Location: sources[i].Location, Err: errs[i]})
		}
	}
	if len(failures) > 0 {
		return out, &LoadError{Failures: failures}
	}
	return out, nil
}

func (l *Loader) loadOne(ctx context.Context, src Source) ([]DataSet, error) {
	start := time.Now()
	rc, err := l.open(ctx, src.Location)
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		l.log.Error("catalog_fetch_error", "source", src.Location, "err", err)
		return nil, err
	}
	defer rc.Close()

	ds, err := Parse(io.LimitReader(rc, maxCatalogBytes))
	if err != nil {
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
		l.log.Error("catalog_parse_error", "source", src.Location, "err", err)
		return nil, err
	}
	metrics.CatalogLoadsTotal.WithLabelValues("ok").Inc()
	l.log.Debug("catalog_loaded",
		"source", src.Location,
		"datasets", len(ds),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ds, nil
}

func (l *Loader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching catalog: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Parse decodes a catalog document: a JSON array of datasets.
func Parse(r io.Reader) ([]DataSet, error) {
	var ds []DataSet
	dec := json.NewDecoder(r)
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	seen := make(map[string]bool, len(ds))
	for _, d := range ds {
		if d.Name == "" {
			return nil, fmt.Errorf("parsing catalog: dataset without DataSet name")
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("parsing catalog: dataset %q declared twice", d.Name)
		}
		seen[d.Name] = true
		if len(d.EraInfo) == 0 {
			return nil, fmt.Errorf("parsing catalog: dataset %q has no EraInfo", d.Name)
		}
		for _, e := range d.EraInfo {
			if err := e.validate(); err != nil {
				return nil, fmt.Errorf("parsing catalog: dataset %q: %w", d.Name, err)
			}
		}
	}
	return ds, nil
}
