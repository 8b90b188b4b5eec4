package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	PollCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revwatch_poll_cycles_total",
		Help: "Total number of poll cycles by query mode and outcome.",
	}, []string{"mode", "status"})

	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "revwatch_poll_seconds",
		Help:    "Time spent in one poll cycle.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	ChangesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revwatch_changes_fetched_total",
		Help: "Total number of change summaries returned by repository queries.",
	})

	StoredChanges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revwatch_stored_changes",
		Help: "Current number of changes held in the change store.",
	})

	HighestChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revwatch_highest_change",
		Help: "Highest change number currently known.",
	})

	RetentionTarget = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revwatch_retention_target",
		Help: "Requested number of changes to retain.",
	})

	ClassifiedChanges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "revwatch_classified_changes",
		Help: "Number of stored changes per change type.",
	}, []string{"type"})

	ArchiveEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revwatch_archive_entries",
		Help: "Number of changes with a known archive locator.",
	})

	StepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revwatch_step_errors_total",
		Help: "Total number of failed poll cycle steps.",
	}, []string{"step"})

	ClientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revwatch_client_requests_total",
		Help: "Total number of repository client requests by operation and outcome.",
	}, []string{"op", "status"})

	ClientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "revwatch_client_request_seconds",
		Help:    "Latency of repository client requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	ClientThrottleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revwatch_client_throttle_seconds",
		Help:    "Time spent waiting on the repository rate limiter.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	DiffCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revwatch_diff_cache_lookups_total",
		Help: "Total number of git changed-file cache lookups by result.",
	}, []string{"result"})

	ConfigReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revwatch_config_reloads_total",
		Help: "Total number of configuration reloads by outcome.",
	}, []string{"status"})

	JournalWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revwatch_journal_write_errors_total",
		Help: "Total number of poll cycle journal write failures.",
	})

	RefEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revwatch_ref_events_total",
		Help: "Total number of filesystem events seen under the watched git directory.",
	})
)
