package authgate

import (
	"context"
	"errors"
	"time"
)

// AuditErrorCode is the stable, low-cardinality error label attached to
// audit events in place of raw error text.
type AuditErrorCode string

const (
	auditErrChallengeInvalid    AuditErrorCode = "challenge_invalid"
	auditErrChallengeRequired   AuditErrorCode = "challenge_required"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountNotFound     AuditErrorCode = "account_not_found"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrAccountDeleted      AuditErrorCode = "account_deleted"
	auditErrProvisioningAborted AuditErrorCode = "provisioning_aborted"
	auditErrProviderExchange    AuditErrorCode = "provider_exchange_failed"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrSessionCreation     AuditErrorCode = "session_creation_failed"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrChallengeRequired):
		return auditErrChallengeRequired
	case errors.Is(err, ErrChallengeUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountDeleted):
		return auditErrAccountDeleted
	case errors.Is(err, ErrProvisioningAborted):
		return auditErrProvisioningAborted
	case errors.Is(err, ErrProviderExchangeFailed):
		return auditErrProviderExchange
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionCreationFailed):
		return auditErrSessionCreation
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	}
	return auditErrInternal
}
