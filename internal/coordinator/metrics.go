package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "total",
			Help:      "Finished sessions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently in flight",
		},
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Session duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(sessionsTotal, activeSessions, sessionDuration)
}
