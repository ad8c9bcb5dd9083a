// Package geocode resolves geodetic coordinates to place names through the
// Nominatim reverse geocoding API.
package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Config configures the geocoder.
type Config struct {
	// BaseURL of the Nominatim instance (default: DefaultBaseURL).
	BaseURL string

	// UserAgent identifies this client per Nominatim's usage policy.
	UserAgent string

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// RateLimit requests per second (default: 1, the public instance cap).
	RateLimit float64

	// CacheTTL for resolved names (default: 10m).
	CacheTTL time.Duration

	// CacheSize bounds the number of cached grid cells (default: 4096).
	CacheSize uint64

	// Zoom selects the feature granularity (default: 15).
	Zoom int

	// Language for returned names (default: "en").
	Language string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// DefaultConfig returns a geocoder config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "iss_tracker_app/1.0",
		Timeout:   10 * time.Second,
		RateLimit: 1.0,
		CacheTTL:  10 * time.Minute,
		CacheSize: 4096,
		Zoom:      15,
		Language:  "en",
	}
}

// Geocoder is a rate-limited, caching Nominatim reverse geocoding client.
// Coordinates are quantised to a ~1 km grid for cache keys, so repeated
// lookups along a slowly moving ground track mostly hit the cache.
type Geocoder struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ttlcache.Cache[string, string]
}

// New creates a Geocoder, filling in defaults for zero-valued fields. Call
// Close to release the cache janitor.
func New(config *Config) *Geocoder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = "iss_tracker_app/1.0"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}
	if config.CacheSize == 0 {
		config.CacheSize = 4096
	}
	if config.Zoom == 0 {
		config.Zoom = 15
	}
	if config.Language == "" {
		config.Language = "en"
	}

	cache := ttlcache.New(
		ttlcache.WithCapacity[string, string](config.CacheSize),
		ttlcache.WithTTL[string, string](config.CacheTTL),
	)
	go cache.Start()

	return &Geocoder{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		cache:   cache,
	}
}

// Close stops the cache janitor.
func (g *Geocoder) Close() {
	if g != nil && g.cache != nil {
		g.cache.Stop()
	}
}

// ReverseName resolves coordinates to a display name. Points that resolve to
// no feature (open ocean) yield an empty name and no error; callers choose
// their own fallback wording. Resolution failures are returned as errors.
func (g *Geocoder) ReverseName(ctx context.Context, latDeg, lonDeg float64) (string, error) {
	key := cacheKey(latDeg, lonDeg)
	if item := g.cache.Get(key, ttlcache.WithDisableTouchOnHit[string, string]()); item != nil {
		return item.Value(), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", strconv.FormatFloat(latDeg, 'f', 6, 64))
	query.Set("lon", strconv.FormatFloat(lonDeg, 'f', 6, 64))
	query.Set("zoom", strconv.Itoa(g.config.Zoom))
	query.Set("accept-language", g.config.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.config.UserAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim: HTTP %d", resp.StatusCode)
	}

	// Nominatim reports unresolvable points as {"error": "Unable to geocode"}
	// with status 200; display_name is simply absent then.
	name := gjson.GetBytes(body, "display_name").String()
	g.cache.Set(key, name, ttlcache.DefaultTTL)
	return name, nil
}

// cacheKey quantises coordinates to two decimal places, about 1.1 km at the
// equator.
func cacheKey(latDeg, lonDeg float64) string {
	return fmt.Sprintf("%.2f,%.2f", latDeg, lonDeg)
}
