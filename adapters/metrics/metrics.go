// Package metrics provides Prometheus metrics collection for the gate and
// the billing cycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tollgate/tollgate/ports"
)

// Collector holds all Prometheus metrics.
type Collector struct {
	// Gate metrics
	AdmissionsTotal *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Billing metrics
	BillingRunsTotal *prometheus.CounterVec
	InvoicesIssued   prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector with all metrics registered on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "admissions_total",
				Help:      "Gate decisions by key tier and outcome code",
			},
			[]string{"tier", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tollgate",
				Name:      "request_duration_seconds",
				Help:      "End-to-end request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"path"},
		),
		BillingRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "billing_runs_total",
				Help:      "Billing cycles by outcome",
			},
			[]string{"outcome"},
		),
		InvoicesIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "invoices_issued_total",
				Help:      "Invoices issued by billing cycles",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tollgate",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reloads",
			},
		),
	}
}

// RecordAdmission counts one gate decision.
func (c *Collector) RecordAdmission(tier, code string) {
	c.AdmissionsTotal.WithLabelValues(tier, code).Inc()
}

// RecordLatency observes end-to-end request latency.
func (c *Collector) RecordLatency(path string, seconds float64) {
	c.RequestDuration.WithLabelValues(path).Observe(seconds)
}

// RecordBillingRun counts one billing cycle.
func (c *Collector) RecordBillingRun(outcome string, invoices int) {
	c.BillingRunsTotal.WithLabelValues(outcome).Inc()
	if invoices > 0 {
		c.InvoicesIssued.Add(float64(invoices))
	}
}

var _ ports.Metrics = (*Collector)(nil)

// NormalizePath caps path label length to keep cardinality bounded.
func NormalizePath(path string) string {
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}

// Noop discards all measurements. Used where metrics are not wired.
type Noop struct{}

func (Noop) RecordAdmission(tier, code string)           {}
func (Noop) RecordLatency(path string, seconds float64)  {}
func (Noop) RecordBillingRun(outcome string, invoices int) {}

var _ ports.Metrics = Noop{}
