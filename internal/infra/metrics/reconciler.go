package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcilerRunsTotal,
		reconcilerOrdersTotal,
	)
}

var (
	reconcilerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Stale order reconciler ticks by result.",
		},
		[]string{"result"}, // 'ok', 'error'
	)

	reconcilerOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_orders_total",
			Help: "Stale orders examined by the reconciler, by outcome.",
		},
		[]string{"outcome"}, // 'captured', 'failed', 'pending', 'error'
	)
)

func IncReconcilerRun(result string) {
	reconcilerRunsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconciledOrder(outcome string) {
	reconcilerOrdersTotal.WithLabelValues(norm(outcome)).Inc()
}
