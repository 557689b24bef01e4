// Package httputil provides the HTTP plumbing shared by registry clients.
//
//   - [Cache]: on-disk JSON cache for registry metadata with a TTL
//   - [Retry]: opt-in retry with exponential backoff for transient failures
//
// Both are off by default in nary: the metadata TTL is 0 (no cache) and the
// retry count is 0, so a transient network failure surfaces immediately.
// The "metadata_ttl" and "retries" config keys turn them on.
package httputil
