// Package monitoring defines the Prometheus metrics exported by the agent and its frontends.
package monitoring

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const prefix = "creative_agent_"

const (
	MetricLabelTool   = "tool"
	MetricLabelServer = "server"
	MetricLabelError  = "error"

	MetricLabelType  = "type"
	MetricLabelModel = "model"

	MetricLabelState  = "state"
	MetricLabelPath   = "path"
	MetricLabelStatus = "status"
)

var (
	ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%stool_invocations_total", prefix),
			Help: "Total number of tool invocations",
		},
		[]string{MetricLabelTool, MetricLabelServer, MetricLabelError},
	)
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%stool_duration_seconds", prefix),
			Help:    "Latency of tool invocations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{MetricLabelTool, MetricLabelServer},
	)
	ConnectedServers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%sconnected_servers", prefix),
			Help: "Number of tool servers with an open session",
		},
	)
	LLMTokensPerRequest = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%sllm_tokens", prefix),
			Help:    "Histogram of tokens sent per request to the LLM",
			Buckets: prometheus.ExponentialBuckets(500, 1.5, 20),
		},
		[]string{MetricLabelType, MetricLabelModel},
	)
	AgentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%sagent_runs_total", prefix),
			Help: "Total number of agent runs by terminal state",
		},
		[]string{MetricLabelState},
	)
	AgentSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%sagent_steps", prefix),
			Help:    "Number of reasoning steps taken per agent run",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%shttp_requests_total", prefix),
			Help: "Total number of web frontend requests",
		},
		[]string{MetricLabelPath, MetricLabelStatus},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers all collectors with the default registry.
// Calling it more than once is harmless.
func RegisterMetrics() {
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			ToolInvocations,
			ToolDuration,
			ConnectedServers,
			LLMTokensPerRequest,
			AgentRuns,
			AgentSteps,
			HTTPRequests,
		} {
			if err := prometheus.Register(c); err != nil {
				var already prometheus.AlreadyRegisteredError
				if !errors.As(err, &already) {
					panic(err)
				}
			}
		}
	})
}

// RecordToolInvocation records one tool call outcome. errKind is empty on success.
func RecordToolInvocation(tool, server, errKind string, elapsed time.Duration) {
	ToolInvocations.WithLabelValues(tool, server, errKind).Inc()
	ToolDuration.WithLabelValues(tool, server).Observe(elapsed.Seconds())
}

// RecordAgentRun records the terminal state and step count of a run
func RecordAgentRun(state string, steps int) {
	AgentRuns.WithLabelValues(state).Inc()
	AgentSteps.Observe(float64(steps))
}
