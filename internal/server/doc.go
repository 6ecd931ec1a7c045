// Package server provides the HTTP server for the disaster dashboard.
//
// It serves the embedded dashboard page, a JSON API over the view states
// held in the store, a Server-Sent Events stream of state changes, the
// emergency and location endpoints, and Prometheus metrics.
//
// The server shuts down gracefully on context cancellation, with a
// 5-second timeout for in-flight requests.
package server
