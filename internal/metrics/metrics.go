package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the API. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	LedgerPostings   *prometheus.CounterVec
	WalletConflicts  prometheus.Counter
	WebhookEvents    *prometheus.CounterVec
	OrdersFinalized  *prometheus.CounterVec
	CommissionEvents *prometheus.CounterVec
	WithdrawalEvents *prometheus.CounterVec
	ReconcileTasks   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skillmint",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		LedgerPostings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "ledger",
			Name:      "postings_total",
			Help:      "Wallet postings applied, by type and reference",
		}, []string{"type", "reference"}),
		WalletConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "ledger",
			Name:      "version_conflicts_total",
			Help:      "Wallet compare-and-set conflicts that triggered a retry",
		}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook events by event type and outcome",
		}, []string{"event", "outcome"}),
		OrdersFinalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "payments",
			Name:      "orders_finalized_total",
			Help:      "Orders transitioned to completed, by payment method",
		}, []string{"method"}),
		CommissionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "affiliate",
			Name:      "commission_transitions_total",
			Help:      "Commission state transitions by target status",
		}, []string{"status"}),
		WithdrawalEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "withdrawals",
			Name:      "transitions_total",
			Help:      "Withdrawal state transitions by target status",
		}, []string{"status"}),
		ReconcileTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skillmint",
			Subsystem: "reconcile",
			Name:      "tasks_total",
			Help:      "Reconciliation tasks by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
