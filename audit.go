package authcore

import (
	"context"
	"time"
)

// Audit event types emitted by the engine.
const (
	AuditEventLoginSuccess   = "login_success"
	AuditEventLoginFailure   = "login_failure"
	AuditEventPairIssued     = "token_pair_issued"
	AuditEventRefreshSuccess = "refresh_success"
	AuditEventRefreshFailure = "refresh_failure"
	AuditEventRefreshReplay  = "refresh_replay_detected"
	AuditEventRevoke         = "refresh_revoked"
	AuditEventRevokeAll      = "refresh_revoked_all"
	AuditEventAccountCreated = "account_created"
	AuditEventAuthzDenied    = "authorization_denied"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, principalID string, success bool, errMsg string, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: principalID,
		IP:          clientIPFromContext(ctx),
		Success:     success,
		Error:       errMsg,
		Metadata:    metadata,
	})
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
