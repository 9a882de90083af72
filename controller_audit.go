package wt

import (
	"context"
	"errors"
)

const (
	auditEventValidate           = "credential_validate"
	auditEventLogin              = "login"
	auditEventTokenLogin         = "token_login"
	auditEventMfaRequired        = "mfa_required"
	auditEventMfaConfirmed       = "mfa_confirmed"
	auditEventLogout             = "logout"
	auditEventRememberIssued     = "remember_issued"
	auditEventRememberConsumed   = "remember_consumed"
	auditEventRememberRevoked    = "remember_revoked"
	auditEventEmailTokenIssued   = "email_token_issued"
	auditEventEmailTokenConsumed = "email_token_consumed"
)

func (c *Controller) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	user User,
	err error,
	metadata map[string]string,
) {
	if c.dispatcher == nil {
		return
	}

	event := AuditEvent{
		Timestamp: c.now(),
		EventType: eventType,
		UserID:    user.ID,
		LoginName: user.LoginName,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     auditErrorCode(err),
		Metadata:  metadata,
	}

	c.dispatcher.Emit(ctx, event)
}

// auditErrorCode maps errors to stable codes so sinks never see raw error
// strings that might carry user input.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrLoginThrottled):
		return "throttled"
	case errors.Is(err, ErrRememberMeDisabled):
		return "remember_me_disabled"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
