// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables with envconfig via
// [Process] (values only) or [LoadConfig] (values, logging and directory
// setup):
//
//   - DATABASE_DIR: directory holding the SQLite host database (default: /database)
//   - LISTS_DIR: directory of smart list definition files (default: /config/lists)
//   - EXPORT_DIR: optional directory for .wpl playlist exports
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics port (default: 9090)
//   - METRICS_ENABLED: serve metrics (default: true)
//   - REFRESH_WORKERS: evaluation workers per list, 0 = auto (default: 0)
//   - MAX_CONCURRENT_LISTS: lists refreshed at once (default: 4)
//   - DEBOUNCE_WINDOW: quiet period before change events are processed (default: 5s)
//   - CHANGE_POLL_INTERVAL: change log poll interval (default: 10s)
//   - DEFINITIONS_RELOAD_INTERVAL: definition directory rescan interval (default: 1m)
//   - SCHEDULE_TIMEZONE: IANA zone schedules are evaluated in (default: Local)
//   - COLLECTION_NAME_PREFIX / COLLECTION_NAME_SUFFIX: collection name decoration
//   - API_TOKEN_HASH: bcrypt hash of the API bearer token (optional)
//   - LOG_HEALTH_CHECKS: log health check requests (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
