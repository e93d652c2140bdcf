package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartlists_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_auth_attempts_total",
			Help: "API token checks by result",
		},
		[]string{"result"}, // "success", "failure", "missing"
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartlists_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartlists_db_transaction_duration_seconds",
			Help:    "Duration of database transactions",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartlists_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Library metrics, refreshed by the Collector
var (
	LibraryItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartlists_library_items",
			Help: "Number of catalog items by media kind",
		},
		[]string{"kind"},
	)

	LibraryUsersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_library_users",
			Help: "Number of known users",
		},
	)

	MaterializedListsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartlists_materialized_lists",
			Help: "Number of materialized lists by kind",
		},
		[]string{"kind"},
	)

	PendingChangesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_pending_changes",
			Help: "Rows waiting in the change log",
		},
	)
)

// Refresh metrics
var (
	RefreshRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_refresh_runs_total",
			Help: "List refreshes by cause and outcome",
		},
		[]string{"cause", "status"}, // status: "success", "error", "discarded"
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartlists_refresh_duration_seconds",
			Help:    "Duration of a single list refresh",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"cause"},
	)

	RefreshesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_refreshes_in_flight",
			Help: "Number of list refreshes currently running",
		},
	)

	RefreshConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_refresh_conflicts_total",
			Help: "Refresh-all requests rejected because one was already running",
		},
	)

	RefreshCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_refresh_coalesced_total",
			Help: "Refresh requests merged into an already pending request",
		},
	)

	ItemsEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_items_evaluated_total",
			Help: "Candidate items evaluated against list rules",
		},
	)

	ItemsMatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_items_matched_total",
			Help: "Candidate items that matched list rules",
		},
	)

	DisabledExpressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_disabled_expressions_total",
			Help: "Expressions disabled for a refresh because their target could not be parsed",
		},
		[]string{"operator"},
	)
)

// Change event metrics
var (
	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_change_events_total",
			Help: "Change events received by kind",
		},
		[]string{"kind"},
	)

	DebounceDrainsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_debounce_drains_total",
			Help: "Number of times the pending change batch was drained",
		},
	)

	DebounceBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartlists_debounce_batch_size",
			Help:    "Number of change events per drained batch",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 500, 1000},
		},
	)

	WatcherPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartlists_watcher_poll_duration_seconds",
			Help:    "Duration of a change log poll",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	WatcherLastPollTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_watcher_last_poll_timestamp",
			Help: "Unix timestamp of the last change log poll",
		},
	)
)

// Schedule and definition metrics
var (
	ScheduleFiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_schedule_fires_total",
			Help: "Scheduled refresh triggers fired by trigger kind",
		},
		[]string{"trigger"},
	)

	ScheduledListsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_scheduled_entries",
			Help: "Number of registered schedule entries",
		},
	)

	DefinitionsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartlists_definitions_loaded",
			Help: "Loaded list definitions by state",
		},
		[]string{"state"}, // "enabled", "disabled"
	)

	DefinitionLoadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_definition_load_errors_total",
			Help: "Definition files skipped because they could not be read or validated",
		},
	)

	PlaylistExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_playlist_exports_total",
			Help: "WPL playlist exports by outcome",
		},
		[]string{"status"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlists_memory_paused",
			Help: "Whether refreshes are held back by memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlists_memory_pauses_total",
			Help: "Times refreshes were paused because memory crossed the critical mark",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_filesystem_retry_attempts_total",
			Help: "Filesystem operations retried after a stale handle error",
		},
		[]string{"operation"},
	)

	FilesystemRetryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_filesystem_retry_outcomes_total",
			Help: "Outcome of filesystem operations that needed at least one retry",
		},
		[]string{"operation", "outcome"}, // "success", "failure"
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlists_filesystem_stale_errors_total",
			Help: "Stale file handle errors seen per volume",
		},
		[]string{"volume"},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartlists_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
