package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/v1/group-orders/{groupOrderId}/join", 201, 40*time.Millisecond)
	m.Observe("POST", "/api/v1/group-orders/{groupOrderId}/join", 201, 60*time.Millisecond)
	m.Observe("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	joins, err := fetchCounterValue(mfs, "groupbuy_http_requests_total", "status", "201")
	if err != nil {
		t.Fatalf("requests_total: %v", err)
	}
	if joins != 2 {
		t.Fatalf("expected 2 created responses, got %v", joins)
	}

	unmatched, err := fetchCounterValue(mfs, "groupbuy_http_requests_total", "route", "unmatched")
	if err != nil {
		t.Fatalf("unmatched route: %v", err)
	}
	if unmatched != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", unmatched)
	}

	sum, err := fetchHistogramSum(mfs, "groupbuy_http_request_duration_seconds", "method", "POST")
	if err != nil {
		t.Fatalf("duration histogram: %v", err)
	}
	if math.Abs(sum-0.1) > 1e-9 {
		t.Fatalf("expected duration sum 0.1, got %v", sum)
	}
}

func TestHTTPMetricsNilSafe(t *testing.T) {
	var m *HTTPMetrics
	m.Observe("GET", "/", 200, time.Second)
	if NewHTTPMetrics(nil) != nil {
		t.Fatal("expected nil metrics without a registerer")
	}
}
