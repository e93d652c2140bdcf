// Package library defines the narrow contracts between the smart list core and
// the media host: the catalog that supplies candidate items, the user
// directory that supplies per-user playback state, the materializer that
// writes computed lists back, and the change events the host emits.
//
// The SQLite adapter in internal/database implements all three interfaces.
// Tests in other packages use small in-memory fakes.
package library
