// Package metrics provides Prometheus instrumentation for the smartlists service.
//
// All metrics are prefixed with "smartlists_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - AuthAttemptsTotal: Counter of API token checks by result
//
// ## Database Metrics
//
//   - DBQueryTotal / DBQueryDuration: queries by operation
//   - DBTransactionDuration: transactions by outcome (commit/rollback)
//   - DBRowsAffected: rows written by operation
//   - DBConnectionsOpen: Gauge of open database connections
//
// ## Refresh Metrics
//
//   - RefreshRunsTotal: Counter by cause (manual/scheduled/auto) and status
//     (success/error/discarded)
//   - RefreshDuration: Histogram of single list refresh time by cause
//   - RefreshesInFlight: Gauge of running refreshes
//   - RefreshConflictsTotal: rejected refresh-all requests
//   - RefreshCoalescedTotal: requests merged into a pending one
//   - ItemsEvaluatedTotal / ItemsMatchedTotal: rule engine throughput
//   - DisabledExpressionsTotal: expressions whose target failed to parse
//
// ## Change Event Metrics
//
//   - ChangeEventsTotal: Counter by change kind
//   - DebounceDrainsTotal / DebounceBatchSize: debouncer activity
//   - WatcherPollDuration / WatcherLastPollTimestamp: change log polling
//
// ## Schedule and Definition Metrics
//
//   - ScheduleFiresTotal: Counter by trigger kind
//   - ScheduledListsTotal: Gauge of registered schedule entries
//   - DefinitionsLoaded: Gauge of definitions by state
//   - DefinitionLoadErrorsTotal: skipped definition files
//   - PlaylistExportsTotal: WPL exports by outcome
//
// # Collector
//
// The [Collector] type periodically asks a [StatsProvider] (the database) for
// library counts and publishes them as gauges:
//
//	collector := metrics.NewCollector(db, time.Minute)
//	collector.Start()
//	defer collector.Stop()
package metrics
