package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/croftbar/authcore/internal/audit"
	"github.com/croftbar/authcore/rbac"
)

// Principal is the authenticated identity tokens and policy decisions apply
// to. The password hash is opaque to the engine; only the password package
// reads it.
type Principal struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         rbac.Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair is the result of issuance: a signed short-lived access token and
// an opaque single-use refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccessTokenPayload is the decoded content of a validated access token.
// Role is a point-in-time snapshot from issuance; a later role change does
// not affect tokens already in flight.
type AccessTokenPayload struct {
	Subject   string
	Role      rbac.Role
	ExpiresAt time.Time
}

// CreateAccountRequest is the input for [Engine.CreateAccount]. Role defaults
// to rbac.RoleUser when empty.
type CreateAccountRequest struct {
	Email    string
	Password string
	FullName string
	Role     rbac.Role
}

// PrincipalProvider is the credential-store interface callers implement to
// integrate authcore with their principal database. Implementations must
// return [ErrPrincipalNotFound] for absent principals and
// [ErrPrincipalExists] for duplicate emails on Create.
type PrincipalProvider interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	Create(ctx context.Context, p *Principal) error
	Update(ctx context.Context, p *Principal) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*Principal, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
