// Package middleware provides HTTP middleware for the smart list API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//   - Optional bearer token authentication against a bcrypt hash
//   - Response compression (gzip) for JSON and playlist responses
package middleware
