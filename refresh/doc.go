// Package refresh persists refresh-token records in Redis.
//
// A record is live while its key exists; consumption, revocation, and expiry
// all reduce to deletion, so there is no separate "used" flag to keep
// consistent. Consumption runs inside a single Lua script, which Redis
// executes atomically: when two callers present the same token concurrently,
// exactly one observes the record and consumes it, the other observes
// absence. Tokens are stored keyed by their SHA-256 hash; the plaintext never
// reaches Redis.
package refresh
