package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	webhookEvents     *prometheus.CounterVec
	ledgerDuplicates  prometheus.Counter
	allocations       *prometheus.CounterVec
	calculationNotice *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_webhook_events_total",
				Help: "Billing webhook events by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		ledgerDuplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bfa_webhook_ledger_duplicates_total",
				Help: "Ledger inserts rejected by the unique event id constraint.",
			},
		),
		allocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_allocations_total",
				Help: "Allocation breakdowns computed, by entry point.",
			},
			[]string{"entry"},
		),
		calculationNotice: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_calculation_notices_total",
				Help: "Diagnostics emitted by reward calculations.",
			},
			[]string{"code"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrWebhookEvent counts a webhook event. Outcome is one of
// processed, duplicate, failed.
func (m *Metrics) IncrWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncrLedgerDuplicate counts a duplicate-key rejection on the event ledger.
func (m *Metrics) IncrLedgerDuplicate() {
	m.ledgerDuplicates.Inc()
}

// IncrAllocation counts one computed allocation breakdown.
func (m *Metrics) IncrAllocation(entry string) {
	m.allocations.WithLabelValues(entry).Inc()
}

// IncrCalculationNotice counts one calculation diagnostic by code.
func (m *Metrics) IncrCalculationNotice(code string) {
	m.calculationNotice.WithLabelValues(code).Inc()
}

// WebhookEventCount returns the current value of the webhook event counter.
func (m *Metrics) WebhookEventCount(eventType, outcome string) float64 {
	return getCounterValue(m.webhookEvents, eventType, outcome)
}

// LedgerDuplicateCount returns the current value of the ledger duplicate counter.
func (m *Metrics) LedgerDuplicateCount() float64 {
	dm := &dto.Metric{}
	if err := m.ledgerDuplicates.Write(dm); err != nil {
		return 0
	}
	return dm.GetCounter().GetValue()
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
