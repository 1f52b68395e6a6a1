package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/polydata/esports-collector/internal/ratelimit"
)

// Default service endpoints.
const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultClobURL  = "https://clob.polymarket.com"
	DefaultDataURL  = "https://data-api.polymarket.com"
)

// Client provides access to the Polymarket REST services.
type Client struct {
	gammaURL   string
	clobURL    string
	dataURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST client. The limiter is the shared admission
// gate; nothing in this package calls the remote side without acquiring
// from it first.
func NewClient(limiter *ratelimit.Limiter, opts ...ClientOption) *Client {
	c := &Client{
		gammaURL: DefaultGammaURL,
		clobURL:  DefaultClobURL,
		dataURL:  DefaultDataURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:      limiter,
		logger:       slog.Default(),
		maxRetries:   5,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithBaseURLs overrides the three service base URLs. Empty strings keep
// the defaults.
func WithBaseURLs(gamma, clob, data string) ClientOption {
	return func(c *Client) {
		if gamma != "" {
			c.gammaURL = gamma
		}
		if clob != "" {
			c.clobURL = clob
		}
		if data != "" {
			c.dataURL = data
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
