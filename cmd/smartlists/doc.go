// Command smartlists runs the smart list service and its maintenance tools.
//
// # Commands
//
//   - serve (default): load definitions, watch the host change log, refresh
//     lists on change events, schedules and API requests, and serve the HTTP
//     API and Prometheus metrics
//   - evaluate <id>: print the ordered items a list would contain right now
//   - validate [path...]: check definition files and report every problem
//   - catalog import <file>: load users, items and user data into the host
//     database from YAML
//   - catalog vacuum: compact the host database
//   - hash-token: produce the bcrypt hash for API_TOKEN_HASH
//
// # Lifecycle
//
// serve loads configuration from the environment, opens the SQLite host
// database, performs an initial definitions load, then starts the refresh
// orchestrator, the change watcher and the metrics collector. SIGINT or
// SIGTERM stops the HTTP servers first, then the watcher, and finally waits
// for in-flight refreshes before closing the database.
package main
