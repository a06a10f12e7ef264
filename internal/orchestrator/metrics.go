package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	masksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "guardian",
			Name:      "masks_total",
			Help:      "Safety masks emitted by category",
		},
		[]string{"category"},
	)

	checkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "guardian",
			Name:      "check_duration_seconds",
			Help:      "Duration of progressive guardian checks",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	checkErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "guardian",
			Name:      "check_errors_total",
			Help:      "Guardian checks that failed and ended their stream",
		},
	)
)

func init() {
	prometheus.MustRegister(masksTotal, checkDuration, checkErrorsTotal)
}
