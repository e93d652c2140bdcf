// Package handlers provides the HTTP API of the smart list service.
//
// It includes handlers for:
//   - Listing definitions together with their runtime refresh status
//   - Triggering refreshes of one or all lists
//   - Previewing a list's evaluation without writing it back
//   - Validating definitions before they are saved
//   - Receiving change events pushed by the host
//   - Health, readiness and version checks
package handlers
