package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the reconciliation workflow.
var (
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrush_reconciliations_total",
			Help: "Reconciliation attempts by trigger path and outcome",
		},
		[]string{"path", "outcome"},
	)

	GatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrush_gateway_requests_total",
			Help: "Outbound gateway verify calls by result",
		},
		[]string{"result"},
	)

	GatewayRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payrush_gateway_request_duration_seconds",
			Help:    "Duration of gateway verify calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrush_webhook_events_total",
			Help: "Inbound webhook deliveries by result",
		},
		[]string{"result"},
	)

	RepairedInvoicesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payrush_repaired_invoices_total",
			Help: "Invoices completed to paid by the repair sweep",
		},
	)
)

// Register registers all metrics with the default registry.
func Register() {
	prometheus.MustRegister(
		ReconciliationsTotal,
		GatewayRequestsTotal,
		GatewayRequestDuration,
		WebhookEventsTotal,
		RepairedInvoicesTotal,
	)
}
