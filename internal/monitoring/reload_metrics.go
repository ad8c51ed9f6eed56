package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons the tool servers get (re)connected
const (
	TriggerStartup  = "startup"
	TriggerSignal   = "signal"
	TriggerPeriodic = "periodic"
)

const (
	MetricLabelTrigger = "trigger"
	MetricLabelOutcome = "outcome"

	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Registered at init through promauto, unlike the collectors in metrics.go,
// since the lifecycle records them before RegisterMetrics runs.
var (
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "reconnects_total",
			Help: "Tool server reconnect attempts by trigger and outcome",
		},
		[]string{MetricLabelTrigger, MetricLabelOutcome},
	)
	ReconnectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "reconnect_duration_seconds",
			Help:    "Time taken to swap in a fresh set of tool server sessions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{MetricLabelTrigger},
	)
	BackoffDelay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "reconnect_backoff_seconds",
			Help: "Delay before the next reconnect attempt, 0 when healthy",
		},
	)
)

// RecordReload records a reconnect that succeeded
func RecordReload(trigger string, elapsed time.Duration) {
	Reconnects.WithLabelValues(trigger, outcomeOK).Inc()
	ReconnectDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

// RecordConnectFailure records a connect or reconnect that failed
func RecordConnectFailure(trigger string) {
	Reconnects.WithLabelValues(trigger, outcomeFailed).Inc()
}

func UpdateBackoffDelay(delay time.Duration) {
	BackoffDelay.Set(delay.Seconds())
}
