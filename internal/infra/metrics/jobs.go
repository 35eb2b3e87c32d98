package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileRunsTotal,
		reconcileSessionsTotal,
		workerQueueDroppedTotal,
	)
}

var (
	reconcileRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_reconcile_runs_total",
			Help: "Completed sweeps of the stale-pending-checkout reconciler.",
		},
	)

	reconcileSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconcile_sessions_total",
			Help: "Stale pending sessions re-checked by the reconciler, by outcome.",
		},
		[]string{"outcome"}, // 'settled', 'still_pending', 'error', 'dropped'
	)

	workerQueueDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_queue_dropped_total",
			Help: "Tasks rejected because the worker queue was full.",
		},
	)
)

func IncReconcileRun() {
	reconcileRunsTotal.Inc()
}

func IncReconcileSession(outcome string) {
	reconcileSessionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncWorkerQueueDropped() {
	workerQueueDroppedTotal.Inc()
}
