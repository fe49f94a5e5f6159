// Package authcore is a session-credential engine: it issues, validates,
// rotates, and revokes token pairs for identity-bearing principals and
// enforces role-based access control over protected resources.
//
// Access tokens are short-lived, signed, and self-verifying; validation is
// purely local and never touches a store. Refresh tokens are long-lived,
// opaque, Redis-backed, and single-use: every rotation consumes the presented
// record atomically and issues a replacement, so replay of an already-used
// refresh token is observable as a plain lookup miss.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types. The policy table lives in the rbac package, the codec in
// jwt, and the refresh record store in refresh; audit dispatch is internal.
//
// # Error policy
//
// Engine methods never log and never retry. Every failure is one of the
// sentinel errors in errors.go, surfaced immediately for the caller to map.
// Authentication and authorization outcomes are deterministic given current
// state, so no failure here is transient.
//
// Engine methods are safe for concurrent use after [Builder.Build].
package authcore
