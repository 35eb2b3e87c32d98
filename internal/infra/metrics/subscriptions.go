package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActive,
		entitlementEvaluationsTotal,
	)
}

var (
	subscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Accounts whose paid subscription currently covers now.",
		},
	)

	entitlementEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_evaluations_total",
			Help: "Entitlement snapshots computed, labeled by resolved plan.",
		},
		[]string{"plan"}, // 'trial', 'pro', 'free'
	)
)

func SetSubscriptionsActive(count int) {
	subscriptionsActive.Set(float64(count))
}

func IncEntitlementEvaluation(plan string) {
	entitlementEvaluationsTotal.WithLabelValues(norm(plan)).Inc()
}
