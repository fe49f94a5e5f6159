package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/croftbar/authcore/internal/audit"
	"github.com/croftbar/authcore/jwt"
	"github.com/croftbar/authcore/password"
	"github.com/croftbar/authcore/rbac"
	"github.com/croftbar/authcore/refresh"
)

// Engine is the assembled credential engine. Construct it through [Builder];
// a zero Engine returns [ErrEngineNotReady] from every operation.
type Engine struct {
	config       Config
	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	refreshStore *refresh.Store
	policy       rbac.Matrix
	provider     PrincipalProvider
	metrics      *Metrics
	audit        *audit.Dispatcher
}

func (e *Engine) ready() error {
	if e == nil || e.jwtManager == nil || e.refreshStore == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Provider returns the configured credential store.
func (e *Engine) Provider() PrincipalProvider {
	if e == nil {
		return nil
	}
	return e.provider
}

// Policy returns a copy of the active permission matrix.
func (e *Engine) Policy() rbac.Matrix {
	if e == nil {
		return nil
	}
	return e.policy.Clone()
}

// AccessTTL returns the configured access-token lifetime.
func (e *Engine) AccessTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.JWT.AccessTTL
}

// IssueTokenPair mints a fresh token pair for principal: a signed access
// token carrying the principal's current role snapshot, and an opaque
// refresh token persisted for one future rotation.
func (e *Engine) IssueTokenPair(ctx context.Context, principal *Principal) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if principal == nil || principal.ID == "" {
		return nil, errors.New("principal with non-empty ID required")
	}

	access, err := e.jwtManager.Issue(principal.ID, string(principal.Role), 0)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := refresh.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	rec := refresh.Record{
		PrincipalID: principal.ID,
		IssuedAt:    now.Unix(),
		ExpiresAt:   now.Add(e.config.RefreshTTL).Unix(),
	}
	if err := e.refreshStore.Save(ctx, refreshToken, rec, e.config.RefreshTTL); err != nil {
		return nil, fmt.Errorf("persist refresh record: %w", err)
	}

	e.metrics.Inc(MetricPairIssued)
	e.emitAudit(ctx, AuditEventPairIssued, principal.ID, true, "", nil)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
	}, nil
}

// Login authenticates an email and password and issues a token pair.
// Unknown email and wrong password both yield [ErrInvalidCredentials];
// callers cannot probe which emails exist.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	principal, err := e.provider.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, AuditEventLoginFailure, "", false, "unknown email", nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}

	match, err := e.passwordHash.Verify(plaintext, principal.PasswordHash)
	if err != nil || !match {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEventLoginFailure, principal.ID, false, "password mismatch", nil)
		return nil, ErrInvalidCredentials
	}

	if !principal.Active {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEventLoginFailure, principal.ID, false, "principal inactive", nil)
		return nil, ErrPrincipalInactive
	}

	pair, err := e.IssueTokenPair(ctx, principal)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEventLoginSuccess, principal.ID, true, "", nil)

	return pair, nil
}

// ValidateAccessToken verifies the signature and expiry of an access token
// and returns its decoded payload. Validation is purely local; no store is
// consulted, so the role in the payload is the snapshot taken at issuance.
func (e *Engine) ValidateAccessToken(tokenStr string) (*AccessTokenPayload, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.jwtManager.Parse(tokenStr)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	if err != nil {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	// The parser already rejects expired tokens; re-checking here keeps the
	// expiry decision independent of parser configuration.
	expiresAt := claims.ExpiresAt.Time
	if !expiresAt.After(time.Now()) {
		e.metrics.Inc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	return &AccessTokenPayload{
		Subject:   claims.Subject,
		Role:      rbac.Role(claims.Role),
		ExpiresAt: expiresAt,
	}, nil
}

// Rotate consumes a refresh token and issues a replacement pair. The
// presented token is invalidated whether rotation succeeds or not: replaying
// an already-consumed token finds no record and fails with
// [ErrRefreshInvalid], the same answer an attacker holding a stolen stale
// token would get.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	rec, err := e.refreshStore.Consume(ctx, refreshToken, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			e.metrics.Inc(MetricRefreshReplayDetected)
			e.metrics.Inc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditEventRefreshReplay, "", false, "no live record", nil)
		case errors.Is(err, refresh.ErrExpired), errors.Is(err, refresh.ErrCorrupt):
			e.metrics.Inc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditEventRefreshFailure, "", false, err.Error(), nil)
		default:
			return nil, fmt.Errorf("consume refresh record: %w", err)
		}
		return nil, ErrRefreshInvalid
	}

	principal, err := e.provider.FindByID(ctx, rec.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			e.metrics.Inc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditEventRefreshFailure, rec.PrincipalID, false, "principal gone", nil)
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	if !principal.Active {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEventRefreshFailure, principal.ID, false, "principal inactive", nil)
		return nil, ErrRefreshInvalid
	}

	pair, err := e.IssueTokenPair(ctx, principal)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEventRefreshSuccess, principal.ID, true, "", nil)

	return pair, nil
}

// Revoke invalidates a single refresh token. The returned bool reports
// whether a live record was actually removed; revoking an unknown token is
// not an error.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	removed, err := e.refreshStore.Delete(ctx, refreshToken)
	if err != nil {
		return false, fmt.Errorf("delete refresh record: %w", err)
	}

	if removed {
		e.metrics.Inc(MetricRevoke)
		e.emitAudit(ctx, AuditEventRevoke, "", true, "", nil)
	}

	return removed, nil
}

// RevokeAll invalidates every outstanding refresh token belonging to a
// principal and returns how many records were removed. Outstanding access
// tokens stay valid until their own expiry.
func (e *Engine) RevokeAll(ctx context.Context, principalID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if principalID == "" {
		return 0, errors.New("principal ID required")
	}

	removed, err := e.refreshStore.DeleteAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh records: %w", err)
	}

	e.metrics.Inc(MetricRevokeAll)
	e.emitAudit(ctx, AuditEventRevokeAll, principalID, true, "",
		map[string]string{"removed": fmt.Sprintf("%d", removed)})

	return removed, nil
}

// ActiveRefreshCount reports how many live refresh records a principal has,
// pruning index entries whose records already expired.
func (e *Engine) ActiveRefreshCount(ctx context.Context, principalID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.refreshStore.ActiveCount(ctx, principalID)
}

// IsAuthorized reports whether role may perform action on resource. It is a
// pure lookup into the policy matrix; absence of a grant is denial.
func (e *Engine) IsAuthorized(role rbac.Role, resource rbac.Resource, action rbac.Action) bool {
	if e == nil || e.policy == nil {
		return false
	}
	return e.policy.IsAuthorized(role, resource, action)
}

// Authorize is [Engine.IsAuthorized] with observability: denials are counted
// and audited, and the result is an error for callers that propagate one.
func (e *Engine) Authorize(ctx context.Context, principalID string, role rbac.Role, resource rbac.Resource, action rbac.Action) error {
	if e.IsAuthorized(role, resource, action) {
		return nil
	}

	e.metrics.Inc(MetricAuthzDenied)
	e.emitAudit(ctx, AuditEventAuthzDenied, principalID, false, "", map[string]string{
		"role":     string(role),
		"resource": string(resource),
		"action":   string(action),
	})

	return ErrPermissionDenied
}

// PermittedActions lists the actions role may perform on resource, sorted.
func (e *Engine) PermittedActions(role rbac.Role, resource rbac.Resource) []rbac.Action {
	if e == nil || e.policy == nil {
		return []rbac.Action{}
	}
	return e.policy.PermittedActions(role, resource)
}

// PermittedResources lists the resources role holds at least one grant on.
func (e *Engine) PermittedResources(role rbac.Role) []rbac.Resource {
	if e == nil || e.policy == nil {
		return []rbac.Resource{}
	}
	return e.policy.PermittedResources(role)
}

// CreateAccount registers a new principal with a hashed password. Role
// defaults to rbac.RoleUser. Duplicate emails yield [ErrPrincipalExists].
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("valid email required")
	}

	role := req.Role
	if role == "" {
		role = rbac.RoleUser
	}
	if !rbac.ValidRole(role) {
		return nil, ErrRoleInvalid
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	principal := &Principal{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.provider.Create(ctx, principal); err != nil {
		if errors.Is(err, ErrPrincipalExists) {
			e.metrics.Inc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, AuditEventAccountCreated, "", false, "duplicate email", nil)
			return nil, ErrPrincipalExists
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}

	e.metrics.Inc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, AuditEventAccountCreated, principal.ID, true, "",
		map[string]string{"role": string(role)})

	return principal, nil
}

// HashPassword hashes a plaintext with the engine's argon2id parameters. It
// exists for callers seeding principals outside CreateAccount.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plaintext)
}

// VerifyPassword checks a plaintext against a stored PHC hash.
func (e *Engine) VerifyPassword(plaintext, hash string) (bool, error) {
	if e == nil || e.passwordHash == nil {
		return false, ErrEngineNotReady
	}
	return e.passwordHash.Verify(plaintext, hash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
