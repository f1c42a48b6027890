package catalog

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL    string        // Required: base URL of the music site, e.g. https://music.example.com
	AuthToken  string        // Optional: bearer token for authenticated endpoints (listen reporting)
	HTTPClient *http.Client  // Optional: HTTP client (defaults to a client with a 15s timeout)
	Logger     Logger        // Optional: logger interface for debug logging
	UserAgent  string        // Optional: User-Agent header (defaults to "tonearm/1.0")
	MaxRetries int           // Optional: retry attempts for transient failures (defaults to 3)
	Backoff    time.Duration // Optional: initial retry backoff (defaults to 1s)
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for catalog API operations.
type Client struct {
	baseURL    *url.URL
	authToken  string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	logger     Logger
}

const defaultTimeout = 15 * time.Second

// NewClient creates a new catalog API client.
//
// Returns an error if BaseURL is missing or unparsable.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog: BaseURL is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: invalid BaseURL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog: BaseURL must be absolute: %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "tonearm/1.0"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 1 * time.Second
	}

	return &Client{
		baseURL:    base,
		authToken:  cfg.AuthToken,
		httpClient: httpClient,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     cfg.Logger,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() *url.URL {
	return c.baseURL
}

// ResolveURL resolves a possibly relative resource locator (such as a track
// fileUrl) against the client's base URL.
func (c *Client) ResolveURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return c.baseURL.ResolveReference(ref).String()
}

// SetAuthToken sets the bearer token for authenticated requests.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
