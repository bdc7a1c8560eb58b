package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestGroupBuyMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGroupBuyMetrics(reg)

	m.IncJoin(JoinAccepted)
	m.IncJoin(JoinAccepted)
	m.IncThresholdCrossing()
	m.IncEmail(EmailOutcomeFailed)
	m.ObserveFanOut("group_order_shipped", false)
	m.SetExhaustedEmails(4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "groupbuy_ledger_joins_total", "result", JoinAccepted); err != nil || got != 2 {
		t.Fatalf("expected 2 accepted joins, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "groupbuy_email_deliveries_total", "outcome", EmailOutcomeFailed); err != nil || got != 1 {
		t.Fatalf("expected 1 failed email, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "groupbuy_fanout_recipients_total", "outcome", "failed"); err != nil || got != 1 {
		t.Fatalf("expected 1 failed recipient, got %f err=%v", got, err)
	}

	gauge := findMetricFamily(mfs, "groupbuy_email_deliveries_exhausted")
	if gauge == nil || len(gauge.GetMetric()) != 1 {
		t.Fatalf("expected exhausted gauge to be exported")
	}
	if got := gauge.GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Fatalf("expected exhausted=4, got %f", got)
	}
}

func TestGroupBuyMetricsNilSafe(t *testing.T) {
	var m *GroupBuyMetrics
	m.IncJoin(JoinRejected)
	m.SetExhaustedEmails(1)
	NewGroupBuyMetrics(nil).ObserveFanOut("x", true)
}

func TestGroupBuyMetricsBlankLabelsReportUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGroupBuyMetrics(reg)

	m.IncJoin("")
	m.IncTransition("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "groupbuy_ledger_joins_total", "result", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected blank join result under unknown, got %f err=%v", got, err)
	}
}
