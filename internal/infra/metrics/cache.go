package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitChecksTotal) }

var rateLimitChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_checks_total",
		Help: "Fixed-window limiter decisions on public endpoints.",
	},
	[]string{"scope", "result"}, // e.g., scope="submit", result="allowed"|"limited"|"error"
)

func IncRateLimitCheck(scope, result string) {
	rateLimitChecksTotal.WithLabelValues(norm(scope), norm(result)).Inc()
}
