// Package observability provides structured logging and Prometheus metrics
// for the feed engine.
package observability
