// Package middleware provides HTTP middleware for the indexing service.
//
// It includes:
//   - an access log with an extra line when an event stream opens
//   - Prometheus request metrics labelled by route template
//   - gzip response compression (event streams are passed through)
//
// Every wrapper implements Unwrap so handlers can reach Flush and write
// deadlines through [http.ResponseController].
package middleware
