// Package httpapi mounts the engine behind a JSON HTTP surface.
//
// Routes live under /api/v1: the auth group covers login, refresh, logout,
// and logout-all; the users group covers registration and principal reads
// guarded by the permission matrix. Handlers translate engine sentinels into
// status codes and never embed policy decisions of their own.
package httpapi
