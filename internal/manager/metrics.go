package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "selections_total",
			Help:      "Runner selections by capability",
		},
		[]string{"capability", "runner"},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "loads_total",
			Help:      "Runner loads by outcome",
		},
		[]string{"runner", "outcome"},
	)

	loadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "load_duration_seconds",
			Help:      "Duration of runner loads in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"runner"},
	)

	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "evictions_total",
			Help:      "Runners unloaded to fit the memory budget",
		},
		[]string{"runner"},
	)

	busyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "busy_total",
			Help:      "Admission rejections",
		},
		[]string{"runner", "reason"},
	)

	inflightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "runner",
			Name:      "inflight",
			Help:      "Leases currently running on a runner",
		},
		[]string{"runner"},
	)
)

func init() {
	prometheus.MustRegister(selectionsTotal, loadsTotal, loadDuration, evictionsTotal, busyTotal, inflightGauge)
}
