// Package playlist exports materialized playlists as Windows Media Player
// (WPL) files.
//
// Exporter wraps a library.Materializer: after the host write succeeds, each
// playlist is written to the export directory as <list>_<owner>.wpl with
// the paths of its items in order. Files are replaced atomically, so readers
// never see a partial playlist. Collections are not exported.
package playlist
