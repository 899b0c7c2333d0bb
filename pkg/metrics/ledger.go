package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records credit ledger and vendor call outcomes.
type LedgerMetrics struct {
	reserves      *prometheus.CounterVec
	refunds       *prometheus.CounterVec
	vendorCalls   *prometheus.CounterVec
	vendorLatency *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	reserves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_reserves_total",
		Help: "Credit reserve attempts by action kind and outcome.",
	}, []string{"kind", "outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_refunds_total",
		Help: "Credit refunds by action kind and outcome.",
	}, []string{"kind", "outcome"})
	vendorCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vendor_calls_total",
		Help: "Generation vendor calls by vendor and outcome.",
	}, []string{"vendor", "outcome"})
	vendorLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendor_call_duration_seconds",
		Help:    "Duration of generation vendor calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor"})
	reg.MustRegister(reserves, refunds, vendorCalls, vendorLatency)
	return &LedgerMetrics{
		reserves:      reserves,
		refunds:       refunds,
		vendorCalls:   vendorCalls,
		vendorLatency: vendorLatency,
	}
}

// IncReserve increments the reserve counter for the kind and outcome.
func (m *LedgerMetrics) IncReserve(kind, outcome string) {
	if m == nil || m.reserves == nil {
		return
	}
	m.reserves.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncRefund increments the refund counter for the kind and outcome.
func (m *LedgerMetrics) IncRefund(kind, outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncVendorCall increments the vendor call counter for the vendor and outcome.
func (m *LedgerMetrics) IncVendorCall(vendor, outcome string) {
	if m == nil || m.vendorCalls == nil {
		return
	}
	m.vendorCalls.WithLabelValues(normalizeLabel(vendor), normalizeLabel(outcome)).Inc()
}

// ObserveVendorLatency records the duration of a vendor call.
func (m *LedgerMetrics) ObserveVendorLatency(vendor string, duration time.Duration) {
	if m == nil || m.vendorLatency == nil {
		return
	}
	m.vendorLatency.WithLabelValues(normalizeLabel(vendor)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
