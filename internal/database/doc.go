// Package database is the SQLite reference host for smart lists.
//
// It stores:
//   - Catalog items with their multi-valued metadata (genres, tags, people, ...)
//   - Users and their per-item playback state
//   - A change log filled by triggers, polled by the watcher
//   - Materialized playlists and collections
//
// The database uses WAL mode for concurrent reads and creates its schema on
// first open.
package database
