package wt

import (
	"context"
	"errors"
	"fmt"

	"github.com/RokerHRO/wt/internal"
	"github.com/RokerHRO/wt/internal/stores"
)

// IssueEmailToken mints a one-shot token for the user, bound to a purpose.
// The returned opaque string goes into the email link; only a SHA-256 hash
// of its secret half is stored server-side.
func (c *Controller) IssueEmailToken(ctx context.Context, user User, purpose EmailTokenPurpose) (string, error) {
	if !user.Valid() {
		return "", ErrInvalidUser
	}
	switch purpose {
	case PurposeVerifyEmail, PurposeLostPassword:
	default:
		return "", fmt.Errorf("unsupported email token purpose %d", purpose)
	}

	tokenID, err := internal.NewSeriesID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewTokenSecret()
	if err != nil {
		return "", err
	}

	ttl := c.config.EmailToken.TTL
	record := &stores.EmailTokenRecord{
		UserID:     user.ID,
		SecretHash: internal.HashTokenSecret(secret),
		ExpiresAt:  c.now().Add(ttl).Unix(),
		Purpose:    int(purpose),
	}
	if err := c.emailStore.Save(ctx, tokenID.String(), record, ttl); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	value, err := internal.EncodeToken(tokenID.String(), secret)
	if err != nil {
		return "", err
	}

	c.metrics.Inc(MetricEmailTokenIssued)
	c.emitAudit(ctx, auditEventEmailTokenIssued, true, user, nil, map[string]string{
		"purpose": purpose.String(),
	})
	return value, nil
}

// ProcessEmailToken consumes a one-shot email token. The result state is a
// closed set: Invalid, Expired, AlreadyUsed, or Valid with the user and
// purpose. Consumption is exactly-once; the first Valid result tombstones
// the token, and every later presentation reports AlreadyUsed until the
// record's natural expiry. Only infrastructure failures return an error.
func (c *Controller) ProcessEmailToken(ctx context.Context, value string) (EmailTokenResult, error) {
	tokenID, secret, err := internal.DecodeToken(value)
	if err != nil {
		c.metrics.Inc(MetricEmailTokenInvalid)
		c.emitAudit(ctx, auditEventEmailTokenConsumed, false, User{}, ErrInvalidCredentials, map[string]string{
			"reason": "malformed",
		})
		return EmailTokenResult{State: EmailTokenInvalid}, nil
	}

	record, err := c.emailStore.Consume(ctx, tokenID, internal.HashTokenSecret(secret))
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrEmailTokenNotFound),
			errors.Is(err, stores.ErrEmailTokenSecretMismatch):
			c.metrics.Inc(MetricEmailTokenInvalid)
			c.emitAudit(ctx, auditEventEmailTokenConsumed, false, User{}, ErrInvalidCredentials, map[string]string{
				"reason": "unknown",
			})
			return EmailTokenResult{State: EmailTokenInvalid}, nil
		case errors.Is(err, stores.ErrEmailTokenExpired):
			c.metrics.Inc(MetricEmailTokenExpired)
			c.emitAudit(ctx, auditEventEmailTokenConsumed, false, User{}, ErrInvalidCredentials, map[string]string{
				"reason": "expired",
			})
			return EmailTokenResult{State: EmailTokenExpired}, nil
		case errors.Is(err, stores.ErrEmailTokenConsumed):
			c.metrics.Inc(MetricEmailTokenReused)
			c.emitAudit(ctx, auditEventEmailTokenConsumed, false, User{}, ErrInvalidCredentials, map[string]string{
				"reason": "already_used",
			})
			return EmailTokenResult{State: EmailTokenAlreadyUsed}, nil
		default:
			return EmailTokenResult{State: EmailTokenInvalid}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := c.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The token was consumed but its account is gone; report Invalid
			// rather than resurrecting a deleted user.
			c.metrics.Inc(MetricEmailTokenInvalid)
			return EmailTokenResult{State: EmailTokenInvalid}, nil
		}
		return EmailTokenResult{State: EmailTokenInvalid}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	purpose := EmailTokenPurpose(record.Purpose)
	c.metrics.Inc(MetricEmailTokenValid)
	c.emitAudit(ctx, auditEventEmailTokenConsumed, true, user, nil, map[string]string{
		"purpose": purpose.String(),
	})

	return EmailTokenResult{
		State:   EmailTokenValid,
		User:    user,
		Purpose: purpose,
	}, nil
}
