// Package geo resolves opaque bank/country codes to geographic coordinates
// through an external lookup service, caching successful results for the
// lifetime of the session.
//
// Resolutions of the same code cluster rather than collide: the cache keeps
// the unjittered base point and every returned coordinate gets a fresh small
// offset within the configured jitter range. Failed lookups are never cached,
// so the next reference retries.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"flowscope/internal/config"
	"flowscope/internal/domain"
)

// Resolver resolves location codes via an external geocoding service.
type Resolver struct {
	baseURL   string
	client    *http.Client
	cache     Cache
	jitterDeg float64
	rng       *rand.Rand
	log       *slog.Logger
}

// NewResolver creates a resolver against the configured geocoder. A nil
// cache gets a fresh MemoryCache; a nil logger falls back to slog.Default.
func NewResolver(cfg config.GeocoderConfig, cache Cache, logger *slog.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		client:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		cache:     cache,
		jitterDeg: cfg.JitterDeg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       logger,
	}
}

// Cache exposes the underlying cache (the handler's gazetteer path reads it).
func (r *Resolver) Cache() Cache {
	return r.cache
}

// lookupPayload is the wire shape of the external locationLookup collaborator.
type lookupPayload struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Resolve maps a two-letter location code to a jittered coordinate.
// Invalid codes return not-ok without any I/O. On a cache miss one external
// lookup is made; a failed lookup returns not-ok and leaves the cache
// untouched so the next reference retries. Concurrent resolutions of the
// same code are not deduplicated; the cache absorbs the redundant lookups
// once the first completes.
func (r *Resolver) Resolve(ctx context.Context, code string) (domain.Location, bool) {
	if !domain.ValidLocationCode(code) {
		return domain.Location{}, false
	}
	code = strings.ToUpper(code)

	if base, ok := r.cache.Get(code); ok {
		return r.jittered(base), true
	}

	base, err := r.lookup(ctx, code)
	if err != nil {
		r.log.Debug("location lookup failed", "code", code, "error", err)
		return domain.Location{}, false
	}

	r.cache.Put(code, base)
	return r.jittered(base), true
}

// ResolveFlows resolves every endpoint of a dataset sequentially, returning
// located codes. Sequential on purpose: it keeps the lookup service from
// being hammered with one burst per redraw and keeps cache writes ordered.
func (r *Resolver) ResolveFlows(ctx context.Context, ds *domain.Dataset) map[string]domain.Location {
	located := make(map[string]domain.Location)
	resolveOnce := func(code string) {
		if code == "" {
			return
		}
		key := strings.ToUpper(code)
		if _, done := located[key]; done {
			return
		}
		if loc, ok := r.Resolve(ctx, code); ok {
			located[key] = loc
		}
	}

	for _, n := range ds.Nodes {
		if ctx.Err() != nil {
			return located
		}
		resolveOnce(n.LocationCode)
	}
	for _, fl := range ds.Flows {
		if ctx.Err() != nil {
			return located
		}
		resolveOnce(fl.FromBank)
		resolveOnce(fl.ToBank)
	}
	return located
}

func (r *Resolver) lookup(ctx context.Context, code string) (domain.Location, error) {
	url := fmt.Sprintf("%s/%s", r.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Location{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.Location{}, fmt.Errorf("lookup %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Location{}, fmt.Errorf("lookup %s: status %d", code, resp.StatusCode)
	}

	var payload lookupPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Location{}, fmt.Errorf("decode lookup %s: %w", code, err)
	}

	return domain.Location{
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
		DisplayName: payload.DisplayName,
	}, nil
}

// jittered returns a copy of the base point offset by a fresh random amount
// within ±jitterDeg on each axis. Co-located entities cluster near the base
// instead of stacking exactly.
func (r *Resolver) jittered(base domain.Location) domain.Location {
	if r.jitterDeg == 0 {
		return base
	}
	return domain.Location{
		Latitude:    base.Latitude + (r.rng.Float64()*2-1)*r.jitterDeg,
		Longitude:   base.Longitude + (r.rng.Float64()*2-1)*r.jitterDeg,
		DisplayName: base.DisplayName,
	}
}
