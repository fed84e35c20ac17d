// Package deals is a client for the third-party product and deal API.
//
// Responses are read with gjson rather than decoded into fixed structs; the
// upstream schema varies by endpoint and country and only a handful of
// fields are needed.
package deals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
)

const (
	StatusOK = "OK"

	defaultTimeout      = 15 * time.Second
	defaultCountry      = "US"
	maxResponseBodySize = 4 << 20
)

var (
	ErrMissingAPIKey = errors.New("deal API key is not set")
	ErrEmptyQuery    = errors.New("search term is required")
	ErrAPIStatus     = errors.New("deal API returned an error status")
	ErrMalformed     = errors.New("deal API returned malformed JSON")
)

// HTTPError is a non-2xx response from the deal API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("deal API: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("deal API: HTTP %d: %s", e.StatusCode, e.Message)
}

// Response is the result of a deal query. Status is "OK" on success and the
// upstream status text otherwise.
type Response struct {
	Status string `json:"status"`
	Deals  []Deal `json:"deals"`
}

// Config configures a Client.
type Config struct {
	BaseURL           string
	APIKey            string
	Country           string
	RequestsPerSecond float64
	Timeout           time.Duration

	// HTTPClient overrides the default client; tests pass one with a mock
	// transport.
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Client talks to the deal API. It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	country  string
	http     *http.Client
	limiter  *rate.Limiter
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	apiKey string
}

// NewClient builds a Client. The base URL must be absolute.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("deal API base URL %q must be absolute", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	country := strings.ToUpper(strings.TrimSpace(cfg.Country))
	if country == "" {
		country = defaultCountry
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  base,
		country:  country,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		validate: newValidator(),
		metrics:  cfg.Metrics,
		logger:   logger.With("component", "deals"),
		apiKey:   strings.TrimSpace(cfg.APIKey),
	}, nil
}

// SetAPIKey replaces the key sent with every request.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// HasAPIKey reports whether a key is configured.
func (c *Client) HasAPIKey() bool {
	return c.key() != ""
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// GetDealsWithFilter fetches current deals matching opts.
//
// When the API answers with a non-OK status the returned Response carries
// that status and the error wraps ErrAPIStatus.
func (c *Client) GetDealsWithFilter(ctx context.Context, opts Options) (Response, error) {
	if err := opts.validate(c.validate); err != nil {
		return Response{}, err
	}

	body, err := c.get(ctx, "deals", "/deals", opts.query(c.country))
	if err != nil {
		return Response{}, err
	}

	status := gjson.GetBytes(body, "status").String()
	if status != StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = status
		}
		return Response{Status: status}, fmt.Errorf("%w: %s", ErrAPIStatus, msg)
	}

	resp := Response{Status: status, Deals: []Deal{}}
	gjson.GetBytes(body, "data.deals").ForEach(func(_, v gjson.Result) bool {
		d := parseDeal(v)
		if opts.OnlyPrime && !d.IsPrime {
			return true
		}
		resp.Deals = append(resp.Deals, d)
		return true
	})

	c.logger.Debug("fetched deals", "count", len(resp.Deals), "country", opts.Country)
	return resp, nil
}

// BestSellers fetches the best-seller list for category. An empty category
// asks for the overall list.
func (c *Client) BestSellers(ctx context.Context, category string) ([]catalog.Product, error) {
	q := url.Values{}
	q.Set("country", c.country)
	if category = strings.TrimSpace(category); category != "" {
		q.Set("category", category)
	}

	body, err := c.get(ctx, "best-sellers", "/best-sellers", q)
	if err != nil {
		return nil, err
	}
	return c.products(body, "data.best_sellers", "best-sellers")
}

// Search runs a product search for term.
func (c *Client) Search(ctx context.Context, term string) ([]catalog.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyQuery
	}

	q := url.Values{}
	q.Set("query", term)
	q.Set("country", c.country)

	body, err := c.get(ctx, "search", "/search", q)
	if err != nil {
		return nil, err
	}
	return c.products(body, "data.products", "search")
}

func (c *Client) products(body []byte, path, source string) ([]catalog.Product, error) {
	if status := gjson.GetBytes(body, "status").String(); status != StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrAPIStatus, status)
	}

	out := []catalog.Product{}
	gjson.GetBytes(body, path).ForEach(func(_, v gjson.Result) bool {
		p := parseProduct(v, source)
		if p.ID != "" {
			out = append(out, p)
		}
		return true
	})
	return out, nil
}

// get performs one paced GET and returns the validated JSON body.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) (body []byte, err error) {
	defer func() { c.metrics.IncDealRequest(endpoint, err == nil) }()

	key := c.key()
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("deal API rate limit wait: %w", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build deal API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", key)
	req.Header.Set("X-RapidAPI-Host", c.baseURL.Host)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deal API %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read deal API response: %w", err)
	}

	c.logger.Debug("deal API request",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(body, "message").String(),
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformed
	}
	return body, nil
}
