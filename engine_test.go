package authcore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/memstore"
	"github.com/croftbar/authcore/rbac"
)

func testEngine(t *testing.T, mutate func(*authcore.Builder) *authcore.Builder) (*authcore.Engine, *memstore.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memstore.New()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true

	builder := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPrincipalProvider(store)
	if mutate != nil {
		builder = mutate(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func createAccount(t *testing.T, engine *authcore.Engine, email string, role rbac.Role) *authcore.Principal {
	t.Helper()
	principal, err := engine.CreateAccount(context.Background(), authcore.CreateAccountRequest{
		Email:    email,
		Password: "hunter2-hunter2",
		FullName: "Test Principal",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	return principal
}

func TestIssueTokenPair(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	principal := createAccount(t, engine, "a@example.com", rbac.RoleUser)

	pair, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("token pair has empty members")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	payload, err := engine.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if payload.Subject != principal.ID {
		t.Fatalf("subject = %q, want %q", payload.Subject, principal.ID)
	}
	if payload.Role != rbac.RoleUser {
		t.Fatalf("role = %q, want user", payload.Role)
	}
	if !payload.ExpiresAt.After(time.Now()) {
		t.Fatal("payload already expired")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	engine, _ := testEngine(t, nil)

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := engine.ValidateAccessToken(bad); !errors.Is(err, authcore.ErrTokenInvalid) {
			t.Fatalf("ValidateAccessToken(%q): expected ErrTokenInvalid, got %v", bad, err)
		}
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	createAccount(t, engine, "login@example.com", rbac.RoleUser)

	pair, err := engine.Login(ctx, "login@example.com", "hunter2-hunter2")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected access token")
	}

	// Email lookup is case-insensitive.
	if _, err := engine.Login(ctx, "LOGIN@Example.com", "hunter2-hunter2"); err != nil {
		t.Fatalf("case-insensitive login failed: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	createAccount(t, engine, "login@example.com", rbac.RoleUser)

	if _, err := engine.Login(ctx, "login@example.com", "not-the-password"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Login(ctx, "ghost@example.com", "whatever-pass"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginInactivePrincipal(t *testing.T) {
	ctx := context.Background()
	engine, store := testEngine(t, nil)
	principal := createAccount(t, engine, "gone@example.com", rbac.RoleUser)

	principal.Active = false
	if err := store.Update(ctx, principal); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if _, err := engine.Login(ctx, "gone@example.com", "hunter2-hunter2"); !errors.Is(err, authcore.ErrPrincipalInactive) {
		t.Fatalf("expected ErrPrincipalInactive, got %v", err)
	}
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleUser)

	first, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	second, err := engine.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation must mint a fresh refresh token")
	}

	payload, err := engine.ValidateAccessToken(second.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if payload.Subject != principal.ID {
		t.Fatalf("subject = %q, want %q", payload.Subject, principal.ID)
	}
}

// Token theft scenario: the legitimate holder rotates, then the old token is
// replayed. The replay must fail while the new token still works.
func TestRotateReplayFails(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleUser)

	first, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	second, err := engine.Rotate(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}

	if _, err := engine.Rotate(ctx, first.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("replay: expected ErrRefreshInvalid, got %v", err)
	}

	if _, err := engine.Rotate(ctx, second.RefreshToken); err != nil {
		t.Fatalf("fresh token must still rotate: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[authcore.MetricRefreshReplayDetected] == 0 {
		t.Fatal("replay was not counted")
	}
}

func TestRotateInactivePrincipal(t *testing.T) {
	ctx := context.Background()
	engine, store := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleUser)

	pair, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	principal.Active = false
	if err := store.Update(ctx, principal); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if _, err := engine.Rotate(ctx, pair.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleUser)

	pair, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	revoked, err := engine.Revoke(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if !revoked {
		t.Fatal("expected revocation to remove a record")
	}

	if _, err := engine.Rotate(ctx, pair.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after revoke, got %v", err)
	}

	// Revoking again reports nothing removed.
	revoked, err = engine.Revoke(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("second Revoke error: %v", err)
	}
	if revoked {
		t.Fatal("expected second revoke to be a no-op")
	}
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleUser)
	other := createAccount(t, engine, "other@example.com", rbac.RoleUser)

	var pairs []*authcore.TokenPair
	for i := 0; i < 3; i++ {
		pair, err := engine.IssueTokenPair(ctx, principal)
		if err != nil {
			t.Fatalf("IssueTokenPair error: %v", err)
		}
		pairs = append(pairs, pair)
	}
	otherPair, err := engine.IssueTokenPair(ctx, other)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	removed, err := engine.RevokeAll(ctx, principal.ID)
	if err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	for _, pair := range pairs {
		if _, err := engine.Rotate(ctx, pair.RefreshToken); !errors.Is(err, authcore.ErrRefreshInvalid) {
			t.Fatalf("expected ErrRefreshInvalid after revoke-all, got %v", err)
		}
		// Access tokens are unaffected until their own expiry.
		if _, err := engine.ValidateAccessToken(pair.AccessToken); err != nil {
			t.Fatalf("access token must outlive revoke-all: %v", err)
		}
	}

	if _, err := engine.Rotate(ctx, otherPair.RefreshToken); err != nil {
		t.Fatalf("unrelated principal's token was revoked: %v", err)
	}
}

// A role change after issuance does not reach tokens already in flight; the
// payload keeps the snapshot taken at issue time.
func TestRoleSnapshotIsStale(t *testing.T) {
	ctx := context.Background()
	engine, store := testEngine(t, nil)
	principal := createAccount(t, engine, "r@example.com", rbac.RoleAdmin)

	pair, err := engine.IssueTokenPair(ctx, principal)
	if err != nil {
		t.Fatalf("IssueTokenPair error: %v", err)
	}

	principal.Role = rbac.RoleUser
	if err := store.Update(ctx, principal); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	payload, err := engine.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if payload.Role != rbac.RoleAdmin {
		t.Fatalf("role = %q, want the admin snapshot", payload.Role)
	}

	// Rotation re-reads the store, so the next pair carries the new role.
	next, err := engine.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	nextPayload, err := engine.ValidateAccessToken(next.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if nextPayload.Role != rbac.RoleUser {
		t.Fatalf("rotated role = %q, want user", nextPayload.Role)
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)

	principal := createAccount(t, engine, "new@example.com", "")
	if principal.Role != rbac.RoleUser {
		t.Fatalf("role = %q, want default user", principal.Role)
	}
	if !principal.Active {
		t.Fatal("new accounts start active")
	}
	if principal.PasswordHash == "" || principal.PasswordHash == "hunter2-hunter2" {
		t.Fatal("password must be stored hashed")
	}

	if _, err := engine.CreateAccount(ctx, authcore.CreateAccountRequest{
		Email:    "new@example.com",
		Password: "hunter2-hunter2",
	}); !errors.Is(err, authcore.ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists, got %v", err)
	}

	if _, err := engine.CreateAccount(ctx, authcore.CreateAccountRequest{
		Email:    "bad-role@example.com",
		Password: "hunter2-hunter2",
		Role:     "superadmin",
	}); !errors.Is(err, authcore.ErrRoleInvalid) {
		t.Fatalf("expected ErrRoleInvalid, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)

	if !engine.IsAuthorized(rbac.RoleAdmin, rbac.ResourceUsers, rbac.ActionDelete) {
		t.Fatal("admin must delete users")
	}
	if engine.IsAuthorized(rbac.RoleUser, rbac.ResourceUsers, rbac.ActionDelete) {
		t.Fatal("user must not delete users")
	}

	if err := engine.Authorize(ctx, "p1", rbac.RoleUser, rbac.ResourceUsers, rbac.ActionDelete); !errors.Is(err, authcore.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[authcore.MetricAuthzDenied] == 0 {
		t.Fatal("denial was not counted")
	}
}

func TestCustomPolicy(t *testing.T) {
	policy := rbac.Matrix{
		rbac.RoleUser: {
			rbac.ResourceSettings: {rbac.ActionUpdate: struct{}{}},
		},
	}

	engine, _ := testEngine(t, func(b *authcore.Builder) *authcore.Builder {
		return b.WithPolicy(policy)
	})

	if !engine.IsAuthorized(rbac.RoleUser, rbac.ResourceSettings, rbac.ActionUpdate) {
		t.Fatal("custom grant missing")
	}
	if engine.IsAuthorized(rbac.RoleAdmin, rbac.ResourceUsers, rbac.ActionRead) {
		t.Fatal("custom policy must fully replace the default")
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	ctx := context.Background()
	sink := authcore.NewChannelSink(64)

	engine, _ := testEngine(t, func(b *authcore.Builder) *authcore.Builder {
		return b.WithAuditSink(sink)
	})
	createAccount(t, engine, "a@example.com", rbac.RoleUser)

	if _, err := engine.Login(authcore.WithClientIP(ctx, "203.0.113.9"), "a@example.com", "hunter2-hunter2"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	seen := map[string]authcore.AuditEvent{}
	for len(seen) < 3 {
		select {
		case ev := <-sink.Events():
			seen[ev.EventType] = ev
		case <-deadline:
			t.Fatalf("timed out waiting for audit events, got %v", keysOf(seen))
		}
	}

	if _, ok := seen[authcore.AuditEventAccountCreated]; !ok {
		t.Fatal("missing account_created event")
	}
	if _, ok := seen[authcore.AuditEventPairIssued]; !ok {
		t.Fatal("missing token_pair_issued event")
	}
	login, ok := seen[authcore.AuditEventLoginSuccess]
	if !ok {
		t.Fatal("missing login_success event")
	}
	if login.IP != "203.0.113.9" {
		t.Fatalf("login event IP = %q, want the context IP", login.IP)
	}
}

func keysOf(m map[string]authcore.AuditEvent) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestMetricsSnapshot(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, nil)
	createAccount(t, engine, "m@example.com", rbac.RoleUser)

	if _, err := engine.Login(ctx, "m@example.com", "hunter2-hunter2"); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if _, err := engine.Login(ctx, "m@example.com", "wrong-password"); !errors.Is(err, authcore.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[authcore.MetricLoginSuccess] != 1 {
		t.Fatalf("login success = %d, want 1", snap.Counters[authcore.MetricLoginSuccess])
	}
	if snap.Counters[authcore.MetricLoginFailure] != 1 {
		t.Fatalf("login failure = %d, want 1", snap.Counters[authcore.MetricLoginFailure])
	}
	if snap.Counters[authcore.MetricPairIssued] != 1 {
		t.Fatalf("pairs issued = %d, want 1", snap.Counters[authcore.MetricPairIssued])
	}
}

func TestBuilderValidation(t *testing.T) {
	if _, err := authcore.New().Build(); err == nil {
		t.Fatal("expected missing redis client to fail Build")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	if _, err := authcore.New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected missing provider to fail Build")
	}

	// No signing secret configured.
	if _, err := authcore.New().
		WithRedis(rdb).
		WithPrincipalProvider(memstore.New()).
		Build(); err == nil {
		t.Fatal("expected missing JWT secret to fail Build")
	}

	builder := authcore.New().
		WithRedis(rdb).
		WithPrincipalProvider(memstore.New())
	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	if _, err := builder.WithConfig(cfg).Build(); err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if _, err := builder.Build(); err == nil {
		t.Fatal("expected reused builder to fail Build")
	}
}
