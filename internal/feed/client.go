package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/iss-tracker/core"
)

// Config configures the feed client behavior.
type Config struct {
	// FeedURL is the OEM document location (default: DefaultFeedURL).
	FeedURL string

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// MaxRetries for failed requests (default: 3).
	MaxRetries int

	// RateLimit requests per second (default: 1).
	RateLimit float64

	// RateBurst maximum burst size (default: 1).
	RateBurst int

	// UserAgent string (default: "iss-tracker/1.0").
	UserAgent string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// DefaultConfig returns a feed config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:    DefaultFeedURL,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RateLimit:  1.0,
		RateBurst:  1,
		UserAgent:  "iss-tracker/1.0",
	}
}

// Client is a rate-limited, retry-capable fetcher for the OEM feed.
type Client struct {
	config      *Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a feed client, filling in defaults for zero-valued fields.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FeedURL == "" {
		config.FeedURL = DefaultFeedURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 1
	}
	if config.UserAgent == "" {
		config.UserAgent = "iss-tracker/1.0"
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// FetchDataset downloads the OEM document and parses it into a Dataset. The
// returned dataset has not been loaded anywhere; callers hand it to a
// TelemetryStore.
func (c *Client) FetchDataset(ctx context.Context) (core.Dataset, error) {
	raw, err := c.fetch(ctx)
	if err != nil {
		return core.Dataset{}, err
	}
	return ParseOEM(bytes.NewReader(raw))
}

// fetch executes the download with rate limiting and retry.
func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		body, err := c.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		// Exponential backoff
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetchOnce executes a single download attempt.
func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

// HTTPError represents an HTTP error response from the feed host.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error.
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server error.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

// isRetryable determines if an error should be retried.
func isRetryable(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr.IsRateLimited() || httpErr.IsServerError()
	}
	return false
}
