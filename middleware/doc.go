// Package middleware exposes net/http adapters for authcore token validation
// and permission enforcement.
//
// # Guards
//
//   - [Guard] validates the bearer access token and injects its payload
//     into the request context.
//   - [RequirePermission] is Guard plus a policy check for one resource and
//     action.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access any store.
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
