// Package memstore is an in-memory PrincipalProvider for tests, examples,
// and single-process deployments that do not need durable principals.
//
// All state lives behind one RWMutex. Returned principals are copies, so
// callers cannot mutate stored state through them.
package memstore
