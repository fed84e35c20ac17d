package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	m.IncBulkAction("export", true)
	m.ObserveDerive("products", time.Millisecond)
	m.IncDealRequest("deals", false)
	m.IncExtractorCache(true)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil Handler status = %d, want 404", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncBulkAction("delete", true)
	m.IncBulkAction("delete", false)
	m.IncBulkAction("delete", false)
	m.IncExtractorCache(false)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			got[key] = metric.GetCounter().GetValue()
		}
	}

	want := map[string]float64{
		"catalogdesk_bulk_actions_total,action=delete,outcome=failure": 2,
		"catalogdesk_bulk_actions_total,action=delete,outcome=success": 1,
		"catalogdesk_extractor_cache_total,result=miss":                1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncBulkAction("export", true)
	m.ObserveHTTP("GET", "", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`catalogdesk_bulk_actions_total{action="export",outcome="success"} 1`,
		`route="unmatched"`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
