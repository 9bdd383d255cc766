package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ricesearch/rice-facets/internal/pkg/middleware"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(body)
}

func TestMetrics_Lifecycle(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RequestIssued()
	m.RequestIssued()
	m.ResultApplied(20 * time.Millisecond)
	m.StaleDiscarded()
	m.TransportFailed()
	m.WidgetsRegistered(4)
	m.Navigated("reloaded")
	m.Navigated("reloaded")
	m.Navigated("stepped_back")

	body := scrape(t, m)

	for _, want := range []string{
		"rice_facets_requests_total 2",
		"rice_facets_results_total 1",
		"rice_facets_stale_responses_total 1",
		"rice_facets_transport_errors_total 1",
		"rice_facets_widgets 4",
		`rice_facets_navigations_total{outcome="reloaded"} 2`,
		`rice_facets_navigations_total{outcome="stepped_back"} 1`,
		"rice_facets_request_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_RecordBusPublish(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordBusPublish("facets.result", time.Millisecond, nil)
	m.RecordBusPublish("facets.result", time.Millisecond, errors.New("closed"))

	body := scrape(t, m)

	for _, want := range []string{
		`rice_facets_bus_events_published_total{topic="facets.result"} 1`,
		`rice_facets_bus_errors_total{topic="facets.result"} 1`,
		`rice_facets_bus_publish_duration_seconds_count{topic="facets.result"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNew_IncludesRuntimeCollectors(t *testing.T) {
	m := New()
	body := scrape(t, m)

	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go_goroutines")
	}
}

func TestMux_WrapsMetricsOnly(t *testing.T) {
	m := New()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerSecond: 0.1, Burst: 1})
	defer rl.Stop()

	server := httptest.NewServer(Mux(m, rl.Middleware))
	defer server.Close()

	get := func(path string) int {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := get("/metrics"); code != http.StatusOK {
		t.Errorf("first scrape status = %d, want 200", code)
	}
	if code := get("/metrics"); code != http.StatusTooManyRequests {
		t.Errorf("second scrape status = %d, want 429", code)
	}
	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", code)
	}
}
