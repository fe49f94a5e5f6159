// Package jwt implements the signed access-token codec.
//
// Tokens are self-contained: subject, role snapshot, and expiry are embedded
// in the signed payload, so verification never touches a store. HS256 and
// Ed25519 signing are supported; the scheme is fixed process-wide through
// [Config] and validated when the [Manager] is constructed.
package jwt
