// Package rbac implements the static role-based access control matrix used
// by the authcore engine.
//
// The matrix maps a role to the set of (resource, action) pairs it may
// perform. It is fixed at process start, performs no I/O, and every query is
// a pure function: identical inputs always yield identical outputs, and any
// role, resource, or action absent from the matrix is a deny, never an error.
package rbac
