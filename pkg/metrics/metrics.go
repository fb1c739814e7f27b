package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksTotal is the number of tasks the agent currently tracks, by state.
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kestrel_tasks_total",
			Help: "Total number of tasks tracked by the agent, by state",
		},
		[]string{"state"},
	)

	FrameworksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kestrel_frameworks_total",
			Help: "Total number of frameworks with at least one executor or unacknowledged status update",
		},
	)

	ExecutorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kestrel_executors_total",
			Help: "Total number of executors the agent currently supervises",
		},
	)

	// ValidStatusUpdates counts status updates accepted from an executor or
	// synthesized by the agent itself.
	ValidStatusUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_valid_status_updates_total",
			Help: "Total number of status updates accepted from executors or synthesized by the agent",
		},
	)

	// InvalidStatusUpdates counts executor status updates rejected because
	// their framework is unknown or their task is not indexed under it.
	InvalidStatusUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_invalid_status_updates_total",
			Help: "Total number of status updates rejected as invalid",
		},
	)

	// InvalidFrameworkMessages counts framework-to-executor messages dropped
	// because their framework or target executor is unknown, or the executor
	// has not registered yet.
	InvalidFrameworkMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_invalid_framework_messages_total",
			Help: "Total number of framework messages rejected as invalid",
		},
	)

	StatusUpdateAckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kestrel_status_update_ack_duration_seconds",
			Help:    "Time from sending a status update to the master acknowledging its uuid",
			Buckets: prometheus.DefBuckets,
		},
	)

	StatusUpdateRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_status_update_retries_total",
			Help: "Total number of status update retransmissions sent by the reliability engine",
		},
	)

	// UsageSampleDuration times CollectResourceStatistics round trips to the
	// isolation backend.
	UsageSampleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kestrel_usage_sample_duration_seconds",
			Help:    "Time taken by the isolation backend to answer a resource-statistics request",
			Buckets: prometheus.DefBuckets,
		},
	)

	ExecutorLaunches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_executor_launches_total",
			Help: "Total number of executors launched",
		},
	)

	ExecutorExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_executor_exits_total",
			Help: "Total number of executor exits, by whether the exit was clean",
		},
		[]string{"clean"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksTotal,
		FrameworksTotal,
		ExecutorsTotal,
		ValidStatusUpdates,
		InvalidStatusUpdates,
		InvalidFrameworkMessages,
		StatusUpdateAckDuration,
		StatusUpdateRetries,
		UsageSampleDuration,
		ExecutorLaunches,
		ExecutorExits,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
