// Package extract builds a product record from a product page URL.
//
// Pages are read with goquery. OpenGraph and product meta tags win, then
// schema.org JSON-LD, then common storefront selectors. Results are cached
// per URL.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/catalog"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultCacheSize    = 256
	defaultMaxBodyBytes = 8 << 20
	defaultUserAgent    = "Mozilla/5.0 (compatible; catalogdesk/1.0)"
)

var (
	ErrUnsupportedURL = errors.New("only http and https product URLs are supported")
	ErrNoProductData  = errors.New("no product data found on page")
	ErrBodyTooLarge   = errors.New("product page exceeds size limit")
)

// FetchError is a non-2xx response from the product page.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Config configures an Extractor.
type Config struct {
	Timeout      time.Duration
	CacheSize    int
	UserAgent    string
	MaxBodyBytes int64

	HTTPClient *http.Client
	Audit      audit.Sink
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Extractor fetches and parses product pages. Safe for concurrent use.
type Extractor struct {
	http      *http.Client
	cache     *lru.Cache[string, catalog.Product]
	userAgent string
	maxBody   int64
	audit     audit.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New returns an Extractor.
func New(cfg Config) (*Extractor, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, catalog.Product](size)
	if err != nil {
		return nil, fmt.Errorf("create extractor cache: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		http:      client,
		cache:     cache,
		userAgent: ua,
		maxBody:   maxBody,
		audit:     audit.OrNop(cfg.Audit),
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "extract"),
		now:       time.Now,
	}, nil
}

// ExtractFromURL returns the product described by the page at rawURL.
func (e *Extractor) ExtractFromURL(ctx context.Context, rawURL string) (*catalog.Product, error) {
	key, err := normalizeURL(rawURL)
	if err != nil {
		e.recordFailure(ctx, rawURL, err)
		return nil, err
	}

	if p, ok := e.cache.Get(key); ok {
		e.metrics.IncExtractorCache(true)
		return &p, nil
	}
	e.metrics.IncExtractorCache(false)

	p, err := e.fetch(ctx, key)
	if err != nil {
		e.recordFailure(ctx, key, err)
		return nil, err
	}

	e.cache.Add(key, *p)
	audit.Record(ctx, e.audit, "Product extracted", fmt.Sprintf("%s from %s", p.Title, key), audit.KindSuccess)
	e.logger.Info("product extracted", "url", key, "id", p.ID)

	out := *p
	return &out, nil
}

// Purge drops every cached page.
func (e *Extractor) Purge() {
	e.cache.Purge()
}

func (e *Extractor) recordFailure(ctx context.Context, u string, err error) {
	audit.Record(ctx, e.audit, "Product extraction failed", fmt.Sprintf("%s: %v", u, err), audit.KindError)
	e.logger.Warn("product extraction failed", "url", u, "error", err)
}

func (e *Extractor) fetch(ctx context.Context, u string) (*catalog.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	// Read one byte past the limit to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > e.maxBody {
		return nil, ErrBodyTooLarge
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}

	base := resp.Request.URL
	if base == nil {
		base, _ = url.Parse(u)
	}
	return parsePage(doc, base, e.now())
}

// normalizeURL validates the scheme and drops the fragment so "#reviews"
// variants share a cache entry.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", ErrUnsupportedURL
	}
	if u.Host == "" {
		return "", ErrUnsupportedURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

var asinRegex = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d)/([A-Z0-9]{10})(?:[/?]|$)`)

// productID prefers an ASIN in the page or canonical URL.
func productID(pageURL *url.URL, canonical string) string {
	for _, s := range []string{canonical, pageURL.String()} {
		if m := asinRegex.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return uuid.NewString()
}
