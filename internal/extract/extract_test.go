package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogdesk/internal/audit"
	"github.com/JonMunkholm/catalogdesk/internal/metrics"
)

const storefrontPage = `<!doctype html>
<html><head>
<title>Amazon.com: Sony WH-1000XM5</title>
<link rel="canonical" href="/Sony-WH-1000XM5/dp/B09XS7JWHH">
</head><body>
<span id="productTitle">  Sony WH-1000XM5
   Wireless Headphones </span>
<a id="bylineInfo">Visit the Sony Store</a>
<div id="corePrice_feature_div"><span class="a-offscreen">$348.00</span></div>
<span id="acrPopover" title="4.6 out of 5 stars"></span>
<span id="acrCustomerReviewText">12,034 ratings</span>
<img id="landingImage" src="/images/xm5.jpg">
<i class="a-icon-prime"></i>
<div id="zeitgeistBadge_feature_div"><div class="badge-wrapper">#1 Best Seller</div></div>
</body></html>`

const metaPage = `<!doctype html>
<html><head>
<meta property="og:title" content="Theragun Mini">
<meta property="og:description" content="Handheld percussive massage">
<meta property="og:image" content="https://cdn.example.test/mini.jpg">
<meta property="product:price:amount" content="199.00">
<meta property="product:price:currency" content="USD">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"ignored","brand":{"@type":"Brand","name":"Therabody"},
 "aggregateRating":{"@type":"AggregateRating","ratingValue":"4.7","reviewCount":"2210"}}
</script>
</head><body></body></html>`

func newTestExtractor(t *testing.T, sink audit.Sink) *Extractor {
	t.Helper()
	e, err := New(Config{CacheSize: 8, Audit: sink, Metrics: metrics.New()})
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return e
}

func serve(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestExtractFromURL_Storefront(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, storefrontPage)
	sink := audit.NewMemory(10)
	e := newTestExtractor(t, sink)

	p, err := e.ExtractFromURL(context.Background(), srv.URL+"/item")
	require.NoError(t, err)

	assert.Equal(t, "B09XS7JWHH", p.ID)
	assert.Equal(t, "Sony WH-1000XM5 Wireless Headphones", p.Title)
	assert.Equal(t, "Sony", p.Brand)
	assert.Equal(t, "$348.00", p.Price.String())
	assert.Equal(t, 4.6, p.Rating.OrZero())
	assert.Equal(t, 12034.0, p.ReviewCount.OrZero())
	assert.Equal(t, srv.URL+"/images/xm5.jpg", p.ImageURL)
	assert.Equal(t, srv.URL+"/Sony-WH-1000XM5/dp/B09XS7JWHH", p.URL)
	assert.True(t, p.IsPrime)
	assert.True(t, p.IsBestSeller)
	assert.False(t, p.IsAmazonChoice)
	assert.Equal(t, "extract", p.Source)

	entries, _ := sink.List(context.Background(), 0)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.KindSuccess, entries[0].Kind)
}

func TestExtractFromURL_MetaAndJSONLD(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, metaPage)
	e := newTestExtractor(t, nil)

	p, err := e.ExtractFromURL(context.Background(), srv.URL+"/mini")
	require.NoError(t, err)

	assert.Equal(t, "Theragun Mini", p.Title, "og:title wins over JSON-LD name")
	assert.Equal(t, "Handheld percussive massage", p.Subtitle)
	assert.Equal(t, "Therabody", p.Brand)
	assert.Equal(t, "$199.00", p.Price.String())
	assert.Equal(t, "199", p.Price.Amount.String())
	assert.Equal(t, 4.7, p.Rating.OrZero())
	assert.Equal(t, 2210.0, p.ReviewCount.OrZero())
	assert.Equal(t, "https://cdn.example.test/mini.jpg", p.ImageURL)
	assert.NotEmpty(t, p.ID, "pages without an ASIN get a generated id")
}

func TestExtractFromURL_CachesByURL(t *testing.T) {
	srv, hits := serve(t, http.StatusOK, storefrontPage)
	e := newTestExtractor(t, nil)
	ctx := context.Background()

	first, err := e.ExtractFromURL(ctx, srv.URL+"/item")
	require.NoError(t, err)
	first.Title = "mutated by caller"

	second, err := e.ExtractFromURL(ctx, srv.URL+"/item#reviews")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Sony WH-1000XM5 Wireless Headphones", second.Title, "cache must not share the caller's copy")

	e.Purge()
	_, err = e.ExtractFromURL(ctx, srv.URL+"/item")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestExtractFromURL_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported scheme", func(t *testing.T) {
		sink := audit.NewMemory(10)
		e := newTestExtractor(t, sink)

		for _, raw := range []string{"ftp://example.test/x", "javascript:alert(1)", "not a url", "https://"} {
			_, err := e.ExtractFromURL(ctx, raw)
			assert.ErrorIs(t, err, ErrUnsupportedURL, raw)
		}

		entries, _ := sink.List(ctx, 0)
		require.Len(t, entries, 4)
		assert.Equal(t, audit.KindError, entries[0].Kind)
	})

	t.Run("http error", func(t *testing.T) {
		srv, _ := serve(t, http.StatusServiceUnavailable, "down")
		e := newTestExtractor(t, nil)

		_, err := e.ExtractFromURL(ctx, srv.URL)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	})

	t.Run("no product data", func(t *testing.T) {
		srv, _ := serve(t, http.StatusOK, "<html><body><p>nothing here</p></body></html>")
		e := newTestExtractor(t, nil)

		_, err := e.ExtractFromURL(ctx, srv.URL)
		assert.ErrorIs(t, err, ErrNoProductData)
	})

	t.Run("body too large", func(t *testing.T) {
		srv, _ := serve(t, http.StatusOK, "<html><title>x</title>"+strings.Repeat("a", 2048)+"</html>")
		e, err := New(Config{MaxBodyBytes: 1024})
		require.NoError(t, err)

		_, err = e.ExtractFromURL(ctx, srv.URL)
		assert.ErrorIs(t, err, ErrBodyTooLarge)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		srv, hits := serve(t, http.StatusNotFound, "")
		e := newTestExtractor(t, nil)

		_, _ = e.ExtractFromURL(ctx, srv.URL)
		_, _ = e.ExtractFromURL(ctx, srv.URL)
		assert.Equal(t, int32(2), hits.Load())
	})
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  HTTPS://Example.TEST/dp/B000000001#x ", "https://example.test/dp/B000000001"},
		{"http://example.test/a?b=c", "http://example.test/a?b=c"},
	}
	for _, tt := range tests {
		got, err := normalizeURL(tt.in)
		if err != nil {
			t.Errorf("normalizeURL(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanBrand(t *testing.T) {
	tests := map[string]string{
		"Visit the Sony Store": "Sony",
		"Brand: Anker":         "Anker",
		"Therabody":            "Therabody",
	}
	for in, want := range tests {
		if got := cleanBrand(in); got != want {
			t.Errorf("cleanBrand(%q) = %q, want %q", in, got, want)
		}
	}
}
