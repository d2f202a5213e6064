// Package handlers provides the HTTP surface of the indexing service.
//
// It includes handlers for:
//   - Indexing commands (start, pause, resume, cancel) and session status
//   - A Server-Sent Events stream of indexing events
//   - Paginated asset catalog reads
//   - Health, readiness, version and Prometheus metrics
package handlers
