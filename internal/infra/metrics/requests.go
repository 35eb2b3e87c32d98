package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(requestAdmissionsTotal)
}

var requestAdmissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "song_request_admissions_total",
		Help: "Public page submissions by admission outcome.",
	},
	[]string{"outcome"}, // 'admitted', 'quota_denied', 'rate_limited', 'error'
)

func IncRequestAdmission(outcome string) {
	requestAdmissionsTotal.WithLabelValues(norm(outcome)).Inc()
}
