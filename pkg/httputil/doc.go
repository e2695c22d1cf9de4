// Package httputil provides the HTTP plumbing shared by every upstream
// source: a byte-level fetch capability with a stable User-Agent, retry
// with exponential backoff for transient failures, and a TTL-based file
// cache for upstream responses.
//
// The rest of the system consumes [Fetcher] rather than net/http directly,
// so tests substitute in-memory transports and the resolution pipeline
// stays independent of the wire.
package httputil
