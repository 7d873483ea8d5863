// Package helix provides the core Twitch Helix HTTP client with
// credential handling, retries, and error classification.
package helix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RaeedAhmed/twitch-py/pkg/ratelimit"
)

// Prometheus metrics for Helix client operations.
var (
	helixRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_requests_total",
		Help: "Total Helix requests by endpoint and status",
	}, []string{"endpoint", "status"})

	helixRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helix_request_duration_seconds",
		Help:    "Helix request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	helixErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_errors_total",
		Help: "Total Helix errors by class",
	}, []string{"class"})
)

// DefaultEndpoint is the production Helix API base URL.
const DefaultEndpoint = "https://api.twitch.tv/helix"

// MaxBatchIDs is the maximum number of ids Helix accepts per id-filtered
// request (e.g. GET /users?id=...&id=...).
const MaxBatchIDs = 100

// Credential is the bearer token and owning identity attached to every
// authenticated request.
type Credential struct {
	UserID int64
	Token  string
}

// TokenSource supplies the current credential. Implementations are expected
// to hold exactly one live credential at a time.
type TokenSource interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticToken is a TokenSource backed by a fixed credential. Used during
// login before a credential has been persisted, and in tests.
type StaticToken Credential

// Credential implements TokenSource.
func (s StaticToken) Credential(context.Context) (Credential, error) {
	return Credential(s), nil
}

// Page is one decoded Helix response envelope.
type Page struct {
	Data   []json.RawMessage
	Cursor string
}

type envelope struct {
	Data       []json.RawMessage `json:"data"`
	Pagination struct {
		Cursor string `json:"cursor"`
	} `json:"pagination"`
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the Helix base URL (default: DefaultEndpoint).
	Endpoint string

	// ClientID is sent as the Client-ID header (REQUIRED by Helix).
	ClientID string

	// Tokens supplies the bearer credential for each request.
	Tokens TokenSource

	// Timeout per HTTP request.
	Timeout time.Duration

	// MaxRetries for transport failures before surfacing the error.
	MaxRetries int
}

// Client is the Helix HTTP client.
type Client struct {
	httpClient *http.Client
	config     Config
	tracker    *ratelimit.Tracker
	logger     zerolog.Logger
}

// New creates a new Helix client.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	logger := log.With().Str("component", "helix-client").Logger()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		tracker:    ratelimit.NewTracker(),
		logger:     logger,
	}, nil
}

// RateLimit returns the most recently observed Helix rate-limit bucket.
func (c *Client) RateLimit() ratelimit.State {
	return c.tracker.State()
}

// GetPage performs a GET request against an endpoint-with-query string such
// as "streams?first=50&game_id=123" and decodes the response envelope.
func (c *Client) GetPage(ctx context.Context, params string) (Page, error) {
	var page Page
	err := c.do(ctx, http.MethodGet, params, func(body io.Reader) error {
		var env envelope
		if err := json.NewDecoder(body).Decode(&env); err != nil {
			return &APIError{Class: ClassDecode, Message: "decode response envelope", Err: err}
		}
		page = Page{Data: env.Data, Cursor: env.Pagination.Cursor}
		return nil
	})
	return page, err
}

// Get performs a GET request and returns only the data array of the envelope.
func (c *Client) Get(ctx context.Context, params string) ([]json.RawMessage, error) {
	page, err := c.GetPage(ctx, params)
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// Send issues a bodyless mutation request (POST or DELETE) and discards any
// response body. Used for relationship toggles such as follow/unfollow.
func (c *Client) Send(ctx context.Context, method, params string) error {
	return c.do(ctx, method, params, nil)
}

// do executes one request with credential headers, retry logic, and error
// classification. decode, when non-nil, consumes the response body on 2xx.
func (c *Client) do(ctx context.Context, method, params string, decode func(io.Reader) error) error {
	endpoint := endpointLabel(params)

	start := time.Now()
	defer func() {
		helixRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	cred, err := c.config.Tokens.Credential(ctx)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}

	url := c.config.Endpoint + "/" + params

	attempt := func() error {
		if err := c.tracker.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Client-ID", c.config.ClientID)
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			helixErrorsTotal.WithLabelValues(string(ClassTransport)).Inc()
			helixRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &APIError{Class: ClassTransport, Message: "http request", Err: err}
		}
		defer resp.Body.Close()

		c.tracker.UpdateFromHeaders(resp.Header)
		helixRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			helixErrorsTotal.WithLabelValues(string(ClassTransport)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("method", method).
				Int("status", resp.StatusCode).
				Msg("Helix request error")
			return &APIError{
				StatusCode: resp.StatusCode,
				Class:      ClassTransport,
				Message:    resp.Status,
			}
		}

		if decode == nil {
			return nil
		}
		if err := decode(resp.Body); err != nil {
			helixErrorsTotal.WithLabelValues(string(ClassDecode)).Inc()
			return err
		}
		return nil
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing Helix request")

	return retryWithBackoff(ctx, c.config.MaxRetries, attempt)
}

// endpointLabel strips the query string so metrics stay low-cardinality.
func endpointLabel(params string) string {
	if i := strings.IndexByte(params, '?'); i >= 0 {
		return params[:i]
	}
	return params
}
