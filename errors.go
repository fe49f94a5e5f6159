package authcore

import "errors"

var (
	// ErrTokenInvalid covers every access-token validation failure: bad
	// signature, malformed payload, or expiry in the past.
	ErrTokenInvalid = errors.New("invalid access token")

	// ErrRefreshInvalid covers every refresh rotation failure: unknown,
	// expired, or already-consumed token, or an owner that no longer exists
	// or is inactive.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrInvalidCredentials is returned by Login for a bad email/password
	// combination. Unknown email and wrong password are indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPermissionDenied is returned when a role lacks the permission for a
	// resource and action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPrincipalNotFound is returned when a referenced principal is absent.
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrPrincipalExists is returned on duplicate registration.
	ErrPrincipalExists = errors.New("principal already exists")

	// ErrPrincipalInactive is returned when a deactivated principal attempts
	// to authenticate or rotate.
	ErrPrincipalInactive = errors.New("principal inactive")

	// ErrRoleInvalid is returned when a role outside the closed set is used.
	ErrRoleInvalid = errors.New("invalid role")

	// ErrEngineNotReady is returned when an Engine is used before Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
