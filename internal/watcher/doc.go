// Package watcher feeds library changes to the refresh orchestrator.
//
// The watcher runs two background loops:
//   - Change polling: reads new rows of the host change log, groups them into
//     change events, forwards them and prunes consumed rows
//   - Definition reload: periodically re-reads list definitions so edits,
//     new schedules and disabled lists take effect
//
// The consumed position is persisted, so a restart does not replay changes.
package watcher
