package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agent_relay"

// Narration record outcomes.
const (
	OutcomeQueued     = "queued"
	OutcomeInternal   = "dropped_internal"
	OutcomeNoise      = "dropped_noise"
	OutcomeDecoration = "dropped_decoration"
)

// RelayMetrics holds all Prometheus metrics for the relay service.
type RelayMetrics struct {
	NarrationRecords  *prometheus.CounterVec
	NarrationFailures prometheus.Counter
	NarrationEvicted  prometheus.Counter
	StreamEventsSent  prometheus.Counter
	ActiveStreams     prometheus.Gauge

	SolveTasks       *prometheus.CounterVec
	SolveInFlight    prometheus.Gauge
	SolveDuration    prometheus.Histogram
	TaskEventsFailed prometheus.Counter

	ProgramLookups     *prometheus.CounterVec
	ProgramCacheHits   prometheus.Counter
	ProgramCacheMisses prometheus.Counter
	WALActive          prometheus.Gauge
}

// NewRelayMetrics initializes the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in the service and a fresh registry in tests.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		NarrationRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narration",
			Name:      "records_total",
			Help:      "Total number of log records seen by the interceptor by outcome.",
		}, []string{"outcome"}), // outcome: queued, dropped_internal, dropped_noise, dropped_decoration
		NarrationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narration",
			Name:      "handler_failures_total",
			Help:      "Total number of records the interceptor failed to process.",
		}),
		NarrationEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "narration",
			Name:      "evicted_total",
			Help:      "Total number of queued lines evicted by the backlog limit.",
		}),
		StreamEventsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_sent_total",
			Help:      "Total number of SSE events written to clients.",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_sessions",
			Help:      "Number of open SSE stream sessions.",
		}),
		SolveTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solve",
			Name:      "tasks_total",
			Help:      "Total number of finished solve tasks by state.",
		}, []string{"state"}), // state: completed, failed
		SolveInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solve",
			Name:      "tasks_in_flight",
			Help:      "Number of submitted or running solve tasks.",
		}),
		SolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solve",
			Name:      "duration_seconds",
			Help:      "Agent call duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		TaskEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solve",
			Name:      "task_events_failed_total",
			Help:      "Total number of task lifecycle events that could not be published.",
		}),
		ProgramLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program_store",
			Name:      "lookups_total",
			Help:      "Total number of program store lookups by result.",
		}, []string{"result"}), // result: hit, miss, error
		ProgramCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program_store",
			Name:      "cache_hits_total",
			Help:      "Total number of program cache hits.",
		}),
		ProgramCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program_store",
			Name:      "cache_misses_total",
			Help:      "Total number of program cache misses.",
		}),
		WALActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program_store",
			Name:      "wal_active_gauge",
			Help:      "Indicates if the Write-Ahead Log is currently active (1 for active, 0 for inactive).",
		}),
	}
}
