// Package audit defines the audit event model, sink interfaces, and the
// asynchronous dispatcher used by the root engine. The engine itself never
// blocks on a sink: events are buffered and forwarded by a single goroutine,
// and overflow behavior (drop vs. wait) is configured at build time.
package audit
