package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		BillingConfirmRequests,
		BillingConfirmDuration,
		webhookEventsTotal,
	)
}

var (
	// Count of confirm calls grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): not_found|gateway_error|method_not_allowed|unknown
	BillingConfirmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_confirm_requests_total",
			Help: "Count of /api/v1/billing/confirm calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of confirm handler grouped by result.
	BillingConfirmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_confirm_duration_seconds",
			Help:    "Duration of /api/v1/billing/confirm handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Webhook deliveries grouped by event type and outcome.
	// status: processed|ignored|invalid|error
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Processor webhook deliveries by event type and outcome.",
		},
		[]string{"type", "status"},
	)
)

func IncWebhookEvent(eventType, status string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(status)).Inc()
}
