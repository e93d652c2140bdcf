// Package mediatypes provides the closed set of media kinds shared across the
// smartlists service.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Kinds
//
// Every library item has exactly one Kind:
//
//	mediatypes.KindMovie      // Feature films
//	mediatypes.KindEpisode    // TV episodes (belong to a Series)
//	mediatypes.KindAudio      // Music tracks
//	mediatypes.KindBoxSet     // Collection objects
//
// Use ParseKind for case-insensitive parsing of user supplied names:
//
//	kind, err := mediatypes.ParseKind("episode") // KindEpisode
//
// # Extension Detection
//
// KindForExtension maps a file extension to a best-effort Kind. The catalog
// importer uses it when an item does not state its kind explicitly:
//
//	ext := strings.ToLower(filepath.Ext(path))
//	kind, ok := mediatypes.KindForExtension(ext)
package mediatypes
